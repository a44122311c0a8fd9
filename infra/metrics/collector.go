package metrics

import (
	"context"

	"github.com/kilianp07/lampfleet/core/fleet"
	coremetrics "github.com/kilianp07/lampfleet/core/metrics"
	"github.com/kilianp07/lampfleet/core/model"
	"github.com/kilianp07/lampfleet/infra/logger"
	"github.com/kilianp07/lampfleet/internal/eventbus"
)

// StartSnapshotCollector subscribes to the snapshot bus and records a fleet
// summary for every snapshot. It stops when the context is canceled or the
// bus is closed.
func StartSnapshotCollector(ctx context.Context, bus *eventbus.TypedBus[fleet.Snapshot], sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.FleetStateRecorder)
	if !ok {
		return
	}
	log := logger.New("metrics-collector")
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-sub:
				if !ok {
					return
				}
				if err := rec.RecordFleetState(FleetState(snap)); err != nil {
					log.Warnf("record fleet state: %v", err)
				}
			}
		}
	}()
}

// FleetState summarises a snapshot.
func FleetState(s fleet.Snapshot) coremetrics.FleetStateEvent {
	ev := coremetrics.FleetStateEvent{
		LampsByStatus: map[string]int{
			string(model.LampOK):         0,
			string(model.LampReplace):    0,
			string(model.LampInProgress): 0,
		},
		Drones: make([]coremetrics.DroneState, len(s.Drones)),
		Docks:  make([]coremetrics.DockState, len(s.Docks)),
		Time:   s.Timestamp,
	}
	for _, l := range s.Lamps {
		ev.LampsByStatus[string(l.Status)]++
	}
	for i, d := range s.Drones {
		ev.Drones[i] = coremetrics.DroneState{DroneID: d.ID, Status: string(d.Status), Battery: d.Battery, Container: d.ContainerLampsRemaining}
	}
	for i, d := range s.Docks {
		ev.Docks[i] = coremetrics.DockState{DockID: d.ID, Full: d.FullContainers, Empty: d.EmptyContainers}
	}
	for _, m := range s.Missions {
		if m.Status == model.MissionRunning {
			ev.RunningMissions++
		}
	}
	return ev
}
