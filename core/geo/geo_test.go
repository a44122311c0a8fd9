package geo

import (
	"math"
	"testing"
)

func TestDistanceKnownPair(t *testing.T) {
	paris := Point{Lat: 48.8566, Lng: 2.3522}
	london := Point{Lat: 51.5074, Lng: -0.1278}
	d := Distance(paris, london)
	if math.Abs(d-343.5) > 1.5 {
		t.Fatalf("expected ~343.5km got %.2f", d)
	}
}

func TestDistanceSymmetricAndZero(t *testing.T) {
	a := Point{Lat: 55.75, Lng: 37.61}
	b := Point{Lat: 55.76, Lng: 37.64}
	if Distance(a, a) != 0 {
		t.Fatalf("distance to self must be zero")
	}
	if math.Abs(Distance(a, b)-Distance(b, a)) > 1e-12 {
		t.Fatalf("distance not symmetric")
	}
}

func TestStep(t *testing.T) {
	from := Point{Lat: 0, Lng: 0}
	to := Point{Lat: 0, Lng: 1}
	p, arrived := Step(from, to, 0.25)
	if arrived {
		t.Fatalf("should not arrive after one step")
	}
	if math.Abs(p.Lng-0.25) > 1e-9 || p.Lat != 0 {
		t.Fatalf("unexpected position %+v", p)
	}
	p, arrived = Step(Point{Lat: 0, Lng: 0.9}, to, 0.25)
	if !arrived || p != to {
		t.Fatalf("expected arrival at %+v got %+v", to, p)
	}
}
