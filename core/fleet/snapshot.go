package fleet

import (
	"time"

	"github.com/kilianp07/lampfleet/core/model"
)

// Snapshot is the read-only view pushed to observers.
type Snapshot struct {
	AmbientTemperature float64          `json:"ambientTemperature"`
	AutoService        bool             `json:"autoService"`
	Docks              []model.Dock     `json:"docks"`
	Drones             []model.Drone    `json:"drones"`
	ActiveDrone        *model.Drone     `json:"activeDrone"`
	Lamps              []model.Lamp     `json:"lamps"`
	Missions           []model.Mission  `json:"missions"`
	Log                []model.LogEntry `json:"log"`
	Timestamp          time.Time        `json:"timestamp"`
}

// Snapshot copies the current state. Only the newest SnapshotLogLimit log
// entries are included.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		AmbientTemperature: s.ambientTemp,
		AutoService:        s.autoService,
		Docks:              make([]model.Dock, len(s.docks)),
		Drones:             make([]model.Drone, len(s.drones)),
		Lamps:              make([]model.Lamp, len(s.lamps)),
		Missions:           make([]model.Mission, len(s.missions)),
		Timestamp:          s.now(),
	}
	for i, d := range s.docks {
		snap.Docks[i] = *d
	}
	for i, d := range s.drones {
		snap.Drones[i] = *d
	}
	if len(snap.Drones) > 0 {
		active := snap.Drones[0]
		snap.ActiveDrone = &active
	}
	for i, l := range s.lamps {
		snap.Lamps[i] = *l
	}
	for i, m := range s.missions {
		snap.Missions[i] = m.Clone()
	}
	start := max(0, len(s.entries)-SnapshotLogLimit)
	snap.Log = append([]model.LogEntry(nil), s.entries[start:]...)
	return snap
}
