// Package dispatch validates and starts missions. It resolves lamp conflicts
// between missions and binds ready drones to routes.
package dispatch

import (
	"fmt"
	"slices"

	"github.com/kilianp07/lampfleet/core/fleet"
	"github.com/kilianp07/lampfleet/core/logger"
	"github.com/kilianp07/lampfleet/core/model"
	"github.com/kilianp07/lampfleet/core/routing"
)

// Hooks are invoked after a mission has been committed to running.
type Hooks struct {
	// Started starts the execution clock of the mission.
	Started func(m *model.Mission)
	// Broadcast pushes a fresh snapshot to observers.
	Broadcast func()
}

// Controller owns the mission start protocol.
type Controller struct {
	store *fleet.Store
	log   logger.Logger
	hooks Hooks
}

func NewController(store *fleet.Store, log logger.Logger, hooks Hooks) *Controller {
	return &Controller{store: store, log: log, hooks: hooks}
}

// TryStartMission validates the mission, recomputes or filters its routes
// against the current fleet state and commits it to running. Conflicting
// stops are dropped silently.
func (c *Controller) TryStartMission(id string) error {
	m, ok := c.store.Mission(id)
	if !ok {
		return fmt.Errorf("mission %s: %w", id, model.ErrNotFound)
	}
	if m.Status != model.MissionPlanned {
		return fmt.Errorf("mission %s is %s: %w", id, m.Status, model.ErrInvalidState)
	}

	ready := c.readyDrones()
	if len(ready) == 0 {
		c.chargeIdle()
		return fmt.Errorf("insufficient ready drones: %w", model.ErrResourceUnavailable)
	}

	occupied := c.store.OccupiedLamps(m.ID)
	order, proposed := c.propose(m, ready, occupied)
	routes := c.filter(order, proposed, occupied)
	if len(routes) == 0 {
		return fmt.Errorf("mission %s: %w", id, model.ErrNoRoute)
	}
	c.commit(m, order, routes)
	return nil
}

func (c *Controller) readyDrones() []*model.Drone {
	var out []*model.Drone
	for _, d := range c.store.Drones() {
		if c.store.Ready(d) {
			out = append(out, d)
		}
	}
	return out
}

// chargeIdle sends idle drones below the flight threshold to charge.
func (c *Controller) chargeIdle() {
	minBattery := c.store.Config().MinFlightBattery
	for _, d := range c.store.Drones() {
		if d.IsOperational && d.Status == model.DroneIdle && d.Battery <= minBattery {
			d.Status = model.DroneCharging
		}
	}
}

// propose returns the candidate routes and the drone order they are
// evaluated in.
func (c *Controller) propose(m *model.Mission, ready []*model.Drone, occupied map[string]bool) ([]string, map[string][]string) {
	switch {
	case m.Source == model.SourceManual:
		stops := c.stops(m.RouteLampIDs, occupied)
		return droneIDs(ready), flatten(routing.AssignByCapacity(stops, vehicles(ready)))
	case len(m.DroneRoutes) == 0:
		loaded := slices.DeleteFunc(slices.Clone(ready), func(d *model.Drone) bool {
			return d.ContainerLampsRemaining <= 0
		})
		stops := c.stops(m.RouteLampIDs, occupied)
		return droneIDs(loaded), flatten(routing.OptimizeRoutes(stops, vehicles(loaded)))
	default:
		order := slices.Clone(m.AssignedDrones)
		var extra []string
		for id := range m.DroneRoutes {
			if !slices.Contains(order, id) {
				extra = append(extra, id)
			}
		}
		slices.Sort(extra)
		return append(order, extra...), m.DroneRoutes
	}
}

// filter keeps, per ready drone, the lamps that are still waiting for
// replacement, unoccupied and not claimed earlier in the same pass.
func (c *Controller) filter(order []string, proposed map[string][]string, occupied map[string]bool) map[string][]string {
	claimed := make(map[string]bool)
	out := make(map[string][]string)
	for _, droneID := range order {
		d, ok := c.store.Drone(droneID)
		if !ok || !c.store.Ready(d) {
			continue
		}
		var kept []string
		for _, lampID := range proposed[droneID] {
			l, ok := c.store.Lamp(lampID)
			if !ok || l.Status != model.LampReplace || occupied[lampID] || claimed[lampID] {
				continue
			}
			claimed[lampID] = true
			kept = append(kept, lampID)
		}
		if len(kept) > 0 {
			out[droneID] = kept
		}
	}
	return out
}

func (c *Controller) commit(m *model.Mission, order []string, routes map[string][]string) {
	now := c.store.Now()
	m.SetRoutes(order, routes)
	m.Status = model.MissionRunning
	m.StartedAt = &now
	m.Progress = make(map[string]*model.DroneProgress, len(m.AssignedDrones))
	for _, droneID := range m.AssignedDrones {
		m.Progress[droneID] = &model.DroneProgress{Queue: slices.Clone(m.DroneRoutes[droneID])}
		d, _ := c.store.Drone(droneID)
		if dock, ok := c.store.HomeDock(d); ok {
			d.Position = dock.Point()
		}
		d.Status = model.DroneEnroute
		d.TargetLampID = ""
		d.MissionID = m.ID
	}
	c.store.AppendLog(model.LogMissionStarted,
		fmt.Sprintf("mission %s started with %d drones and %d lamps", m.ID, len(m.AssignedDrones), len(m.RouteLampIDs)),
		map[string]any{"missionId": m.ID, "source": string(m.Source), "drones": slices.Clone(m.AssignedDrones), "lamps": slices.Clone(m.RouteLampIDs)})
	c.log.Infof("mission %s started: drones=%v lamps=%d", m.ID, m.AssignedDrones, len(m.RouteLampIDs))
	if c.hooks.Broadcast != nil {
		c.hooks.Broadcast()
	}
	if c.hooks.Started != nil {
		c.hooks.Started(m)
	}
}

// stops converts lamp ids to routing stops, skipping unknown, occupied and
// non-failed lamps as well as duplicates.
func (c *Controller) stops(ids []string, occupied map[string]bool) []routing.Stop {
	seen := make(map[string]bool, len(ids))
	var out []routing.Stop
	for _, id := range ids {
		l, ok := c.store.Lamp(id)
		if !ok || seen[id] || occupied[id] || l.Status != model.LampReplace {
			continue
		}
		seen[id] = true
		out = append(out, routing.Stop{ID: id, Point: l.Point()})
	}
	return out
}

func vehicles(drones []*model.Drone) []routing.Vehicle {
	out := make([]routing.Vehicle, len(drones))
	for i, d := range drones {
		out[i] = routing.Vehicle{ID: d.ID, Position: d.Position, Capacity: d.ContainerLampsRemaining}
	}
	return out
}

func droneIDs(drones []*model.Drone) []string {
	out := make([]string, len(drones))
	for i, d := range drones {
		out[i] = d.ID
	}
	return out
}

func flatten(r routing.Routes) map[string][]string {
	out := make(map[string][]string, len(r))
	for id := range r {
		out[id] = r.IDs(id)
	}
	return out
}
