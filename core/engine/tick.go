package engine

import (
	"time"

	"github.com/kilianp07/lampfleet/core/model"
)

// tick runs one pass of the global clock: coverage repair, dock service
// completion, charging, restock retry, periodic refill and the auto-service
// poll. A snapshot is broadcast at the end.
func (e *Engine) tick() {
	start := time.Now()
	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		tickLatency.WithLabelValues("global").Observe(time.Since(start).Seconds())
	}()
	if e.closed {
		return
	}

	e.store.EnsureCoverage()
	now := e.store.Now()
	cfg := e.store.Config()
	for _, d := range e.store.Drones() {
		if d.Status == model.DroneServicing {
			if d.ServiceEndsAt != nil && !now.Before(*d.ServiceEndsAt) {
				e.store.CompleteService(d)
			}
			continue
		}
		if d.MissionID != "" || !d.Resting() {
			continue
		}
		charge(d, cfg.ChargePerTick)
		if d.ContainerLampsRemaining <= 0 && e.canRestock(d) {
			e.store.StartService(d)
		}
	}

	if now.Sub(e.lastRefill) >= cfg.RefillInterval() {
		e.store.RefillDocks()
		e.lastRefill = now
	}

	if m, err := e.sched.Poll(); err != nil {
		missionRejections.WithLabelValues(string(model.SourceAutoService), Reason(err)).Inc()
	} else if m != nil {
		e.log.Infof("auto-service mission %s started with %d lamps", m.ID, len(m.RouteLampIDs))
	}
	e.broadcast()
}

// charge moves a resting drone one step towards a full battery.
func charge(d *model.Drone, rate float64) {
	if d.Status == model.DroneIdle && d.Battery < 100 {
		d.Status = model.DroneCharging
	}
	if d.Status != model.DroneCharging {
		return
	}
	d.Battery = min(100, d.Battery+rate)
	if d.Battery >= 100 {
		d.Status = model.DroneIdle
	}
}

// canRestock reports whether an empty drone resting at its dock can swap
// containers now. Drones that came back to a dock without stock wait here
// until a refill arrives.
func (e *Engine) canRestock(d *model.Drone) bool {
	dock, ok := e.store.HomeDock(d)
	return ok && d.IsOperational && dock.IsOperational && dock.FullContainers > 0
}
