package metrics

import "time"

// MissionEvent describes a mission lifecycle transition.
type MissionEvent struct {
	MissionID string
	Source    string
	Status    string
	Drones    int
	Lamps     int
	Completed int
	Duration  time.Duration
	Time      time.Time
}

// MetricsSink records mission events for observability purposes.
type MetricsSink interface {
	RecordMission(ev MissionEvent) error
}

// ReplacementEvent is emitted for every completed cassette replacement.
type ReplacementEvent struct {
	MissionID string
	DroneID   string
	LampID    string
	Battery   float64
	Container int
	EnergyW   float64
	Time      time.Time
}

// ReplacementRecorder records cassette replacements.
type ReplacementRecorder interface {
	RecordReplacement(ev ReplacementEvent) error
}

// DroneState is the per-drone part of a FleetStateEvent.
type DroneState struct {
	DroneID   string
	Status    string
	Battery   float64
	Container int
}

// DockState is the per-dock part of a FleetStateEvent.
type DockState struct {
	DockID string
	Full   int
	Empty  int
}

// FleetStateEvent is a periodic summary of the fleet.
type FleetStateEvent struct {
	LampsByStatus   map[string]int
	Drones          []DroneState
	Docks           []DockState
	RunningMissions int
	Time            time.Time
}

// FleetStateRecorder records fleet summaries.
type FleetStateRecorder interface {
	RecordFleetState(ev FleetStateEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordMission(MissionEvent) error         { return nil }
func (NopSink) RecordReplacement(ReplacementEvent) error { return nil }
func (NopSink) RecordFleetState(FleetStateEvent) error   { return nil }
