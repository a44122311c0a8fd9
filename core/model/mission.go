package model

import (
	"slices"
	"time"
)

// MissionStatus is the lifecycle state of a mission.
type MissionStatus string

const (
	MissionPlanned   MissionStatus = "planned"
	MissionRunning   MissionStatus = "running"
	MissionCompleted MissionStatus = "completed"
)

// MissionSource tells who created a mission.
type MissionSource string

const (
	SourceManual      MissionSource = "manual"
	SourceAutoService MissionSource = "auto_service"
)

// DroneProgress is the execution state of one drone inside a mission.
type DroneProgress struct {
	Queue []string
	Done  bool
}

// Mission is a set of per-drone lamp routes.
type Mission struct {
	ID               string              `json:"id"`
	CreatedAt        time.Time           `json:"createdAt"`
	StartedAt        *time.Time          `json:"startedAt"`
	FinishedAt       *time.Time          `json:"finishedAt"`
	Status           MissionStatus       `json:"status"`
	Source           MissionSource       `json:"source"`
	DroneRoutes      map[string][]string `json:"droneRoutes"`
	RouteLampIDs     []string            `json:"routeLampIds"`
	CompletedLampIDs []string            `json:"completedLampIds"`

	// AssignedDrones fixes the order drones are evaluated in on every tick.
	AssignedDrones []string                  `json:"assignedDrones"`
	Progress       map[string]*DroneProgress `json:"-"`
}

// NewMission returns a planned mission with every collection initialised.
func NewMission(id string, source MissionSource, createdAt time.Time) *Mission {
	return &Mission{
		ID:               id,
		CreatedAt:        createdAt,
		Status:           MissionPlanned,
		Source:           source,
		DroneRoutes:      map[string][]string{},
		RouteLampIDs:     []string{},
		CompletedLampIDs: []string{},
		AssignedDrones:   []string{},
		Progress:         map[string]*DroneProgress{},
	}
}

// SetRoutes replaces the routes of the mission. order fixes the drone
// evaluation order; drones with an empty route are dropped.
func (m *Mission) SetRoutes(order []string, routes map[string][]string) {
	m.DroneRoutes = map[string][]string{}
	m.AssignedDrones = []string{}
	m.RouteLampIDs = []string{}
	for _, id := range order {
		r := routes[id]
		if len(r) == 0 {
			continue
		}
		m.DroneRoutes[id] = slices.Clone(r)
		m.AssignedDrones = append(m.AssignedDrones, id)
		m.RouteLampIDs = append(m.RouteLampIDs, r...)
	}
}

// Active reports whether the mission is planned or running.
func (m *Mission) Active() bool {
	return m.Status == MissionPlanned || m.Status == MissionRunning
}

// Clone returns a deep copy safe to hand to observers.
func (m *Mission) Clone() Mission {
	c := *m
	c.DroneRoutes = make(map[string][]string, len(m.DroneRoutes))
	for k, v := range m.DroneRoutes {
		c.DroneRoutes[k] = slices.Clone(v)
	}
	c.RouteLampIDs = slices.Clone(m.RouteLampIDs)
	c.CompletedLampIDs = slices.Clone(m.CompletedLampIDs)
	c.AssignedDrones = slices.Clone(m.AssignedDrones)
	c.Progress = nil
	return c
}
