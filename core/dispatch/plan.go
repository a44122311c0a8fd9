package dispatch

import (
	"fmt"
	"slices"

	"github.com/kilianp07/lampfleet/core/model"
	"github.com/kilianp07/lampfleet/core/routing"
)

// PlanMission creates a planned manual mission over the requested lamps.
// Lamps that are not waiting for replacement or already claimed are left
// out; the routes stored on the mission are only a preview and are
// recomputed when it starts.
func (c *Controller) PlanMission(lampIDs []string) (*model.Mission, error) {
	for _, id := range lampIDs {
		if _, ok := c.store.Lamp(id); !ok {
			return nil, fmt.Errorf("lamp %s: %w", id, model.ErrNotFound)
		}
	}
	stops := c.stops(lampIDs, c.store.OccupiedLamps(""))
	if len(stops) == 0 {
		return nil, fmt.Errorf("no candidate lamps: %w", model.ErrResourceUnavailable)
	}

	var operational []*model.Drone
	for _, d := range c.store.Drones() {
		if d.IsOperational {
			operational = append(operational, d)
		}
	}
	m := c.store.CreateMission(model.SourceManual)
	preview := flatten(routing.AssignByCapacity(stops, vehicles(operational)))
	m.SetRoutes(droneIDs(operational), preview)
	m.RouteLampIDs = make([]string, len(stops))
	for i, s := range stops {
		m.RouteLampIDs[i] = s.ID
	}
	c.store.AppendLog(model.LogMissionPlanned,
		fmt.Sprintf("mission %s planned for %d lamps", m.ID, len(m.RouteLampIDs)),
		map[string]any{"missionId": m.ID, "lamps": slices.Clone(m.RouteLampIDs)})
	c.log.Debugf("mission %s planned: %v", m.ID, m.RouteLampIDs)
	if c.hooks.Broadcast != nil {
		c.hooks.Broadcast()
	}
	return m, nil
}
