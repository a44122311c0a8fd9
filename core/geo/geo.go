// Package geo provides the distance metric used for every routing decision.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371.0

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Distance returns the haversine great-circle distance between a and b in kilometers.
func Distance(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Step moves from towards to by at most step degrees along a straight line in
// lat/lng space. The second return value reports whether to was reached.
func Step(from, to Point, step float64) (Point, bool) {
	dLat := to.Lat - from.Lat
	dLng := to.Lng - from.Lng
	d := math.Hypot(dLat, dLng)
	if d <= step || d == 0 {
		return to, true
	}
	f := step / d
	return Point{Lat: from.Lat + dLat*f, Lng: from.Lng + dLng*f}, false
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
