// Package mission advances running missions one tick at a time.
package mission

import (
	"fmt"

	"github.com/kilianp07/lampfleet/core/fleet"
	"github.com/kilianp07/lampfleet/core/geo"
	"github.com/kilianp07/lampfleet/core/logger"
	"github.com/kilianp07/lampfleet/core/model"
)

// ReplacedFunc is notified after every completed cassette replacement.
type ReplacedFunc func(m *model.Mission, d *model.Drone, l *model.Lamp)

// Runner applies the per-tick drone state machine to a mission.
type Runner struct {
	store      *fleet.Store
	log        logger.Logger
	onReplaced ReplacedFunc
}

func NewRunner(store *fleet.Store, log logger.Logger, onReplaced ReplacedFunc) *Runner {
	return &Runner{store: store, log: log, onReplaced: onReplaced}
}

// Step advances every assigned drone once, in AssignedDrones order. When no
// drone has work left the mission is marked completed and Step returns true.
func (r *Runner) Step(m *model.Mission) bool {
	if m.Status != model.MissionRunning {
		return m.Status == model.MissionCompleted
	}
	for _, droneID := range m.AssignedDrones {
		p := m.Progress[droneID]
		if p == nil {
			p = &model.DroneProgress{}
			m.Progress[droneID] = p
		}
		if p.Done {
			continue
		}
		d, ok := r.store.Drone(droneID)
		if !ok || !d.IsOperational {
			continue
		}
		r.stepDrone(m, d, p)
	}
	if !r.finished(m) {
		return false
	}
	r.complete(m)
	return true
}

func (r *Runner) finished(m *model.Mission) bool {
	for _, droneID := range m.AssignedDrones {
		if m.Progress[droneID].Done {
			continue
		}
		if d, ok := r.store.Drone(droneID); ok && d.IsOperational {
			return false
		}
	}
	return true
}

//gocyclo:ignore
func (r *Runner) stepDrone(m *model.Mission, d *model.Drone, p *model.DroneProgress) {
	cfg := r.store.Config()

	if d.Battery <= cfg.ReturnBattery && d.Status == model.DroneEnroute && d.TargetLampID != "" {
		r.store.AppendLog(model.LogDroneReturning,
			fmt.Sprintf("%s battery at %.0f%%, returning to %s", d.ID, d.Battery, d.HomeDockID),
			map[string]any{"missionId": m.ID, "droneId": d.ID, "abandoned": len(p.Queue) + 1})
		p.Queue = nil
		d.TargetLampID = ""
		d.Status = model.DroneEnroute
		return
	}

	if d.TargetLampID != "" {
		r.stepTarget(m, d, p)
		return
	}

	if len(p.Queue) > 0 {
		d.TargetLampID = p.Queue[0]
		p.Queue = p.Queue[1:]
		d.Status = model.DroneEnroute
		return
	}

	r.stepReturn(d, p)
}

func (r *Runner) stepTarget(m *model.Mission, d *model.Drone, p *model.DroneProgress) {
	cfg := r.store.Config()
	l, ok := r.store.Lamp(d.TargetLampID)
	want := model.LampReplace
	if d.Status == model.DroneReplacing {
		want = model.LampInProgress
	}
	if !ok || l.Status != want {
		r.log.Debugf("%s abandons %s", d.ID, d.TargetLampID)
		d.TargetLampID = ""
		d.ReplaceStartedAt = nil
		d.Status = model.DroneEnroute
		return
	}

	now := r.store.Now()
	if d.Status == model.DroneReplacing {
		if d.ReplaceStartedAt != nil && now.Sub(*d.ReplaceStartedAt) < cfg.ReplacementDuration() {
			return
		}
		l.Status = model.LampOK
		l.PowerOn = true
		l.CassettePresent = true
		l.EnergyW = r.store.RandomEnergy()
		m.CompletedLampIDs = append(m.CompletedLampIDs, l.ID)
		d.Battery = max(0, d.Battery-r.store.RandomReplaceDrain())
		d.ContainerLampsRemaining = max(0, d.ContainerLampsRemaining-1)
		d.TargetLampID = ""
		d.ReplaceStartedAt = nil
		d.Status = model.DroneEnroute
		r.store.AppendLog(model.LogLampReplaced, fmt.Sprintf("%s replaced the cassette of %s", d.ID, l.Name),
			map[string]any{"missionId": m.ID, "droneId": d.ID, "lampId": l.ID})
		if r.onReplaced != nil {
			r.onReplaced(m, d, l)
		}
		return
	}

	if !r.fly(d, l.Point()) {
		return
	}
	if d.ContainerLampsRemaining <= 0 {
		r.log.Warnf("%s reached %s with an empty container", d.ID, l.ID)
		p.Queue = nil
		d.TargetLampID = ""
		d.Status = model.DroneEnroute
		return
	}
	l.Status = model.LampInProgress
	d.Status = model.DroneReplacing
	d.ReplaceStartedAt = &now
}

func (r *Runner) stepReturn(d *model.Drone, p *model.DroneProgress) {
	dock, ok := r.store.HomeDock(d)
	if ok && !r.fly(d, dock.Point()) {
		return
	}
	if d.ContainerLampsRemaining <= 0 {
		r.store.StartService(d)
	} else {
		d.Status = model.RestStatus(d.Battery)
	}
	p.Done = true
	d.MissionID = ""
}

// fly moves d one step towards to and reports arrival.
func (r *Runner) fly(d *model.Drone, to geo.Point) bool {
	cfg := r.store.Config()
	pos, arrived := geo.Step(d.Position, to, cfg.StepDeg)
	if pos != d.Position {
		d.Battery = max(0, d.Battery-cfg.FlightDrainPerStep)
	}
	d.Position = pos
	return arrived
}

// complete closes the mission. Lamps left in progress by a drone that went
// down are handed back to the replacement pool.
func (r *Runner) complete(m *model.Mission) {
	now := r.store.Now()
	m.Status = model.MissionCompleted
	m.FinishedAt = &now
	for _, droneID := range m.AssignedDrones {
		d, ok := r.store.Drone(droneID)
		if !ok || d.IsOperational {
			continue
		}
		if l, ok := r.store.Lamp(d.TargetLampID); ok && l.Status == model.LampInProgress {
			l.Status = model.LampReplace
		}
		d.TargetLampID = ""
		d.ReplaceStartedAt = nil
		d.MissionID = ""
	}
	r.store.AppendLog(model.LogMissionCompleted,
		fmt.Sprintf("mission %s completed: %d/%d lamps replaced", m.ID, len(m.CompletedLampIDs), len(m.RouteLampIDs)),
		map[string]any{"missionId": m.ID, "completed": len(m.CompletedLampIDs), "planned": len(m.RouteLampIDs)})
	r.log.Infof("mission %s completed", m.ID)
}
