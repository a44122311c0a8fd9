package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/lampfleet/core/metrics"
)

type lineRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (l *lineRecorder) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		l.mu.Lock()
		l.bodies = append(l.bodies, strings.TrimSpace(string(data)))
		l.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInfluxSink_RecordMission(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()
	ev := coremetrics.MissionEvent{
		MissionID: "m1",
		Source:    "manual",
		Status:    "completed",
		Drones:    2,
		Lamps:     3,
		Completed: 3,
		Duration:  90 * time.Second,
		Time:      now,
	}
	if err := sink.RecordMission(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("mission_event").
		AddTag("mission_id", "m1").
		AddTag("source", "manual").
		AddTag("status", "completed").
		AddField("drones", 2).
		AddField("lamps", 3).
		AddField("completed", 3).
		AddField("duration_s", 90.0).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if len(rec.bodies) != 1 || rec.bodies[0] != expected {
		t.Errorf("unexpected bodies: %#v", rec.bodies)
	}
}

func TestInfluxSink_RecordReplacement(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL+"/api/v2/write", "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()
	ev := coremetrics.ReplacementEvent{
		MissionID: "m1",
		DroneID:   "drone-1",
		LampID:    "lamp-007",
		Battery:   81.23456,
		Container: 4,
		EnergyW:   42.5,
		Time:      now,
	}
	if err := sink.RecordReplacement(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("lamp_replaced").
		AddTag("drone_id", "drone-1").
		AddTag("lamp_id", "lamp-007").
		AddTag("mission_id", "m1").
		AddField("battery", 81.235).
		AddField("container", 4).
		AddField("energy_w", 42.5).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if len(rec.bodies) != 1 || rec.bodies[0] != expected {
		t.Errorf("unexpected bodies: %#v", rec.bodies)
	}
}

func TestInfluxSink_RecordFleetState(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	ev := coremetrics.FleetStateEvent{
		LampsByStatus: map[string]int{"ok": 10, "replace": 2},
		Drones: []coremetrics.DroneState{
			{DroneID: "drone-1", Status: "idle", Battery: 100, Container: 5},
			{DroneID: "drone-2", Status: "enroute", Battery: 70, Container: 3},
		},
		RunningMissions: 1,
		Time:            time.Now(),
	}
	if err := sink.RecordFleetState(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	if len(rec.bodies) != 3 {
		t.Fatalf("expected 3 writes got %d", len(rec.bodies))
	}
	if !strings.HasPrefix(rec.bodies[0], "drone_state,drone_id=drone-1") {
		t.Errorf("unexpected first body %s", rec.bodies[0])
	}
	if !strings.HasPrefix(rec.bodies[2], "fleet_state ") || !strings.Contains(rec.bodies[2], "lamps_replace=2i") {
		t.Errorf("unexpected summary body %s", rec.bodies[2])
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
