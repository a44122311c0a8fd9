// Package fleet owns the authoritative in-memory model: docks, drones, lamps,
// missions and the domain event log.
//
// Store is not safe for concurrent use. The engine serialises every call.
// Lookup methods hand out live pointers: only the dispatch controller and the
// two simulation clocks write through them.
package fleet

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/lampfleet/core/journal"
	"github.com/kilianp07/lampfleet/core/logger"
	"github.com/kilianp07/lampfleet/core/model"
	"github.com/kilianp07/lampfleet/core/monitoring"
)

// SnapshotLogLimit is the number of log entries exposed to observers.
const SnapshotLogLimit = 50

// Store holds every entity of the simulation.
type Store struct {
	cfg     Config
	rng     *rand.Rand
	now     func() time.Time
	log     logger.Logger
	journal journal.LogStore

	docks    []*model.Dock
	drones   []*model.Drone
	lamps    []*model.Lamp
	missions []*model.Mission

	dockIdx    map[string]*model.Dock
	droneIdx   map[string]*model.Drone
	lampIdx    map[string]*model.Lamp
	missionIdx map[string]*model.Mission

	entries     []model.LogEntry
	ambientTemp float64
	autoService bool
}

// NewStore builds a store from the seed generator. Drones are not created
// until EnsureCoverage runs.
func NewStore(cfg Config, log logger.Logger) *Store {
	rng := rand.New(rand.NewSource(cfg.Seed.Seed))
	docks, lamps := Generate(cfg, rng)
	s := &Store{
		cfg:         cfg,
		rng:         rng,
		now:         time.Now,
		log:         log,
		docks:       docks,
		lamps:       lamps,
		dockIdx:     make(map[string]*model.Dock, len(docks)),
		droneIdx:    make(map[string]*model.Drone),
		lampIdx:     make(map[string]*model.Lamp, len(lamps)),
		missionIdx:  make(map[string]*model.Mission),
		ambientTemp: 15,
		autoService: cfg.AutoService,
	}
	for _, d := range docks {
		s.dockIdx[d.ID] = d
	}
	for _, l := range lamps {
		l.AmbientTemp = s.ambientTemp
		s.lampIdx[l.ID] = l
	}
	return s
}

// SetClock overrides the time source.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// SetRand overrides the random source.
func (s *Store) SetRand(r *rand.Rand) { s.rng = r }

// SetJournal mirrors every appended log entry to j.
func (s *Store) SetJournal(j journal.LogStore) { s.journal = j }

func (s *Store) Config() Config    { return s.cfg }
func (s *Store) Now() time.Time    { return s.now() }
func (s *Store) Rand() *rand.Rand  { return s.rng }
func (s *Store) AutoService() bool { return s.autoService }

func (s *Store) AmbientTemperature() float64 { return s.ambientTemp }

func (s *Store) Docks() []*model.Dock       { return s.docks }
func (s *Store) Drones() []*model.Drone     { return s.drones }
func (s *Store) Lamps() []*model.Lamp       { return s.lamps }
func (s *Store) Missions() []*model.Mission { return s.missions }

func (s *Store) Dock(id string) (*model.Dock, bool) {
	d, ok := s.dockIdx[id]
	return d, ok
}

func (s *Store) Drone(id string) (*model.Drone, bool) {
	d, ok := s.droneIdx[id]
	return d, ok
}

func (s *Store) Lamp(id string) (*model.Lamp, bool) {
	l, ok := s.lampIdx[id]
	return l, ok
}

func (s *Store) Mission(id string) (*model.Mission, bool) {
	m, ok := s.missionIdx[id]
	return m, ok
}

// CreateMission registers a new planned mission.
func (s *Store) CreateMission(source model.MissionSource) *model.Mission {
	m := model.NewMission(uuid.NewString(), source, s.now())
	s.missions = append(s.missions, m)
	s.missionIdx[m.ID] = m
	return m
}

// DiscardMission removes a mission that never left the planned state.
func (s *Store) DiscardMission(id string) bool {
	m, ok := s.missionIdx[id]
	if !ok || m.Status != model.MissionPlanned {
		return false
	}
	delete(s.missionIdx, id)
	s.missions = slices.DeleteFunc(s.missions, func(x *model.Mission) bool { return x.ID == id })
	return true
}

// MarkLampForReplacement injects a failure. A lamp already waiting for
// replacement is left untouched.
func (s *Store) MarkLampForReplacement(id string) error {
	l, ok := s.lampIdx[id]
	if !ok {
		return fmt.Errorf("lamp %s: %w", id, model.ErrNotFound)
	}
	switch l.Status {
	case model.LampReplace:
		return nil
	case model.LampInProgress:
		return fmt.Errorf("lamp %s is being replaced: %w", id, model.ErrInvalidState)
	}
	fail(l)
	s.AppendLog(model.LogLampFailed, fmt.Sprintf("%s reported a failed cassette", l.Name), map[string]any{"lampId": id})
	return nil
}

// SetAmbientTemperature updates the city-wide reading and every lamp sensor.
func (s *Store) SetAmbientTemperature(v float64) {
	s.ambientTemp = v
	for _, l := range s.lamps {
		l.AmbientTemp = v
	}
	s.AppendLog(model.LogAmbientTemperature, fmt.Sprintf("ambient temperature set to %.1f°C", v), map[string]any{"value": v})
}

// SetAutoService toggles the auto-service scheduler.
func (s *Store) SetAutoService(enabled bool) {
	s.autoService = enabled
	s.AppendLog(model.LogAutoService, fmt.Sprintf("auto-service enabled=%t", enabled), map[string]any{"enabled": enabled})
}

// AppendLog records a domain event and mirrors it to the journal.
func (s *Store) AppendLog(typ model.LogType, msg string, payload map[string]any) model.LogEntry {
	e := model.LogEntry{
		ID:        uuid.NewString(),
		Type:      typ,
		Message:   msg,
		Payload:   payload,
		Timestamp: s.now(),
	}
	s.entries = append(s.entries, e)
	if s.journal != nil {
		if err := s.journal.Append(context.Background(), e); err != nil {
			s.log.Errorf("journal append: %v", err)
			monitoring.CaptureException("journal", err, map[string]string{"type": string(typ)})
		}
	}
	return e
}

// Log returns the full in-memory history.
func (s *Store) Log() []model.LogEntry { return slices.Clone(s.entries) }

// EnsureCoverage creates a drone for every dock that has none and rebinds
// each drone's active dock to its home dock. It returns the created drones.
func (s *Store) EnsureCoverage() []*model.Drone {
	covered := make(map[string]bool, len(s.drones))
	for _, d := range s.drones {
		d.ActiveDockID = d.HomeDockID
		covered[d.HomeDockID] = true
	}
	var created []*model.Drone
	for _, dock := range s.docks {
		if covered[dock.ID] {
			continue
		}
		d := &model.Drone{
			ID:                      fmt.Sprintf("drone-%d", len(s.drones)+1),
			Battery:                 100,
			IsOperational:           true,
			Status:                  model.DroneIdle,
			ContainerLampsRemaining: s.cfg.ContainerCapacity,
			HomeDockID:              dock.ID,
			ActiveDockID:            dock.ID,
			Position:                dock.Point(),
		}
		s.drones = append(s.drones, d)
		s.droneIdx[d.ID] = d
		created = append(created, d)
		s.AppendLog(model.LogDroneCreated, fmt.Sprintf("%s assigned to %s", d.ID, dock.Name), map[string]any{"droneId": d.ID, "dockId": dock.ID})
	}
	return created
}

// HomeDock returns the dock owning d.
func (s *Store) HomeDock(d *model.Drone) (*model.Dock, bool) {
	return s.Dock(d.HomeDockID)
}

// Ready reports whether d can take off on a new mission.
func (s *Store) Ready(d *model.Drone) bool {
	return d.IsOperational &&
		d.Battery > s.cfg.MinFlightBattery &&
		d.Resting() &&
		d.ServiceEndsAt == nil
}

// OccupiedLamps returns the lamps claimed by running missions other than
// exclude and by any drone target. It is computed fresh on every call.
func (s *Store) OccupiedLamps(exclude string) map[string]bool {
	occ := make(map[string]bool)
	for _, m := range s.missions {
		if m.Status != model.MissionRunning || m.ID == exclude {
			continue
		}
		for _, id := range m.RouteLampIDs {
			occ[id] = true
		}
	}
	for _, d := range s.drones {
		if d.TargetLampID != "" {
			occ[d.TargetLampID] = true
		}
	}
	return occ
}

// StartService puts d into servicing at its home dock. One container swap is
// scheduled when the dock holds a full container.
func (s *Store) StartService(d *model.Drone) {
	now := s.now()
	end := now.Add(s.cfg.DockServiceDuration())
	d.Status = model.DroneServicing
	d.ServiceEndsAt = &end
	d.PendingContainerOps = 0
	dock, ok := s.HomeDock(d)
	if ok {
		dock.ContainerSwapStatus = model.SwapInProgress
		if dock.IsOperational && dock.FullContainers > 0 {
			d.PendingContainerOps = 1
		}
		d.Position = dock.Point()
	}
	s.AppendLog(model.LogServiceStarted, fmt.Sprintf("%s servicing at %s", d.ID, d.HomeDockID), map[string]any{
		"droneId":    d.ID,
		"dockId":     d.HomeDockID,
		"pendingOps": d.PendingContainerOps,
	})
}

// CompleteService finishes the container swap scheduled by StartService.
func (s *Store) CompleteService(d *model.Drone) {
	ops := d.PendingContainerOps
	dock, ok := s.HomeDock(d)
	if ok {
		ops = min(ops, dock.FullContainers)
		dock.FullContainers -= ops
		dock.EmptyContainers += ops
		dock.ContainerSwapStatus = model.SwapReplaced
		now := s.now()
		dock.LastSwapCompletedAt = &now
	} else {
		ops = 0
	}
	if ops > 0 {
		d.ContainerLampsRemaining = s.cfg.ContainerCapacity * ops
	}
	d.PendingContainerOps = 0
	d.ServiceEndsAt = nil
	d.Status = model.RestStatus(d.Battery)
	s.AppendLog(model.LogServiceCompleted, fmt.Sprintf("%s service complete", d.ID), map[string]any{
		"droneId":   d.ID,
		"dockId":    d.HomeDockID,
		"swaps":     ops,
		"container": d.ContainerLampsRemaining,
	})
}

// RefillDocks delivers fresh containers to every operational dock up to the
// configured limit and collects the same number of empties. It returns the
// number of containers delivered.
func (s *Store) RefillDocks() int {
	total := 0
	for _, dock := range s.docks {
		if !dock.IsOperational {
			continue
		}
		add := min(s.cfg.RefillAmount, s.cfg.DockContainerLimit-dock.FullContainers)
		if add <= 0 {
			continue
		}
		dock.FullContainers += add
		dock.EmptyContainers = max(0, dock.EmptyContainers-add)
		total += add
	}
	if total > 0 {
		s.AppendLog(model.LogDockRefill, fmt.Sprintf("%d containers delivered to docks", total), map[string]any{"containers": total})
	}
	return total
}

// RandomEnergy draws a lamp wattage within the configured band.
func (s *Store) RandomEnergy() float64 {
	return s.cfg.EnergyMinW + s.rng.Float64()*(s.cfg.EnergyMaxW-s.cfg.EnergyMinW)
}

// RandomReplaceDrain draws the whole-percent battery cost of one replacement.
func (s *Store) RandomReplaceDrain() float64 {
	span := s.cfg.ReplaceDrainMax - s.cfg.ReplaceDrainMin
	return math.Min(math.Floor(s.cfg.ReplaceDrainMin+s.rng.Float64()*(span+1)), math.Floor(s.cfg.ReplaceDrainMax))
}
