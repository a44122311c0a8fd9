// Package engine owns the fleet state and serialises every mutation behind a
// single lock: inbound commands, the global tick and each mission tick.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/lampfleet/core/autoservice"
	"github.com/kilianp07/lampfleet/core/dispatch"
	"github.com/kilianp07/lampfleet/core/fleet"
	"github.com/kilianp07/lampfleet/core/journal"
	"github.com/kilianp07/lampfleet/core/logger"
	coremetrics "github.com/kilianp07/lampfleet/core/metrics"
	"github.com/kilianp07/lampfleet/core/mission"
	"github.com/kilianp07/lampfleet/core/model"
	"github.com/kilianp07/lampfleet/core/monitoring"
	"github.com/kilianp07/lampfleet/internal/eventbus"
)

const sinkQueue = 64

// Options configures an Engine. Zero values fall back to no-op collaborators.
type Options struct {
	Config  fleet.Config
	Logger  logger.Logger
	Journal journal.LogStore
	Sink    coremetrics.MetricsSink
	// Plan overrides the maintenance plan. When nil the plan is loaded from
	// Config.MaintenancePlanFile or derived from the seeded geography.
	Plan  autoservice.Plan
	Clock func() time.Time
}

// Engine is the single owner of fleet state.
type Engine struct {
	mu       sync.Mutex
	store    *fleet.Store
	ctrl     *dispatch.Controller
	runner   *mission.Runner
	sched    *autoservice.Scheduler
	registry *mission.Registry
	bus      *eventbus.TypedBus[fleet.Snapshot]
	log      logger.Logger

	sink   coremetrics.MetricsSink
	events chan func() error

	ctx        context.Context
	cancel     context.CancelFunc
	lastRefill time.Time
	closed     bool
	closeOnce  sync.Once
	workers    sync.WaitGroup
}

// New seeds the fleet, guarantees dock coverage and wires the mission
// controllers. Mission clocks only start once a mission is started.
func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		return nil, fmt.Errorf("engine: logger is required")
	}
	sink := opts.Sink
	if sink == nil {
		sink = coremetrics.NopSink{}
	}

	store := fleet.NewStore(cfg, log)
	if opts.Clock != nil {
		store.SetClock(opts.Clock)
	}
	if opts.Journal != nil {
		store.SetJournal(opts.Journal)
	}
	store.EnsureCoverage()

	plan := opts.Plan
	if plan == nil {
		var err error
		plan, err = resolvePlan(cfg, store)
		if err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		store:      store,
		registry:   mission.NewRegistry(),
		bus:        eventbus.NewTyped[fleet.Snapshot](),
		log:        log,
		sink:       sink,
		events:     make(chan func() error, sinkQueue),
		ctx:        ctx,
		cancel:     cancel,
		lastRefill: store.Now(),
	}
	e.ctrl = dispatch.NewController(store, log, dispatch.Hooks{
		Started:   e.missionStarted,
		Broadcast: e.broadcast,
	})
	e.runner = mission.NewRunner(store, log, e.replaced)
	e.sched = autoservice.New(store, e.ctrl, plan, log)

	e.workers.Add(1)
	go e.drainEvents()
	return e, nil
}

func resolvePlan(cfg fleet.Config, store *fleet.Store) (autoservice.Plan, error) {
	if cfg.MaintenancePlanFile == "" {
		return autoservice.DerivePlan(store), nil
	}
	plan, err := autoservice.LoadPlan(cfg.MaintenancePlanFile)
	if err != nil {
		return nil, fmt.Errorf("maintenance plan: %w", err)
	}
	return plan, nil
}

// Run drives the global tick until ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.store.Config().TickInterval())
	defer ticker.Stop()
	e.log.Infof("engine running: tick=%s mission_tick=%s",
		e.store.Config().TickInterval(), e.store.Config().MissionTickInterval())
	e.Broadcast()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.ctx.Done():
			return nil
		case <-ticker.C:
			e.tick()
		}
	}
}

// Close stops every mission clock and flushes pending metric events.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.cancel()
		e.registry.Close()
		e.mu.Lock()
		e.closed = true
		close(e.events)
		e.mu.Unlock()
		e.workers.Wait()
		e.bus.Close()
	})
}

// Bus exposes the snapshot stream for transports and collectors.
func (e *Engine) Bus() *eventbus.TypedBus[fleet.Snapshot] { return e.bus }

// Subscribe returns a channel of snapshots. The channel only keeps the most
// recent snapshots when the reader falls behind.
func (e *Engine) Subscribe() <-chan fleet.Snapshot { return e.bus.Subscribe() }

// Unsubscribe releases a channel obtained from Subscribe.
func (e *Engine) Unsubscribe(ch <-chan fleet.Snapshot) { e.bus.Unsubscribe(ch) }

// Snapshot returns the current public view.
func (e *Engine) Snapshot() fleet.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Snapshot()
}

// Broadcast pushes a fresh snapshot to every subscriber.
func (e *Engine) Broadcast() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.broadcast()
}

// broadcast must be called with e.mu held.
func (e *Engine) broadcast() {
	if n := e.bus.Publish(e.store.Snapshot()); n > 0 {
		snapshotsEvicted.Add(float64(n))
	}
}

func (e *Engine) missionStarted(m *model.Mission) {
	interval := e.store.Config().MissionTickInterval()
	id := m.ID
	if !e.registry.Start(e.ctx, id, interval, func() { e.missionTick(id) }) {
		e.log.Warnf("mission %s clock not started: already running or engine closing", id)
	}
	ev := coremetrics.MissionEvent{
		MissionID: m.ID,
		Source:    string(m.Source),
		Status:    string(m.Status),
		Drones:    len(m.AssignedDrones),
		Lamps:     len(m.RouteLampIDs),
		Time:      e.store.Now(),
	}
	e.record(func() error { return e.sink.RecordMission(ev) })
}

func (e *Engine) missionTick(id string) {
	start := time.Now()
	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		tickLatency.WithLabelValues("mission").Observe(time.Since(start).Seconds())
	}()

	m, ok := e.store.Mission(id)
	if !ok {
		e.registry.Stop(id)
		return
	}
	wasRunning := m.Status == model.MissionRunning
	if e.runner.Step(m) {
		e.registry.Stop(id)
		if wasRunning {
			e.missionCompleted(m)
		}
	}
	e.broadcast()
}

func (e *Engine) missionCompleted(m *model.Mission) {
	ev := coremetrics.MissionEvent{
		MissionID: m.ID,
		Source:    string(m.Source),
		Status:    string(m.Status),
		Drones:    len(m.AssignedDrones),
		Lamps:     len(m.RouteLampIDs),
		Completed: len(m.CompletedLampIDs),
		Time:      e.store.Now(),
	}
	if m.StartedAt != nil && m.FinishedAt != nil {
		ev.Duration = m.FinishedAt.Sub(*m.StartedAt)
	}
	e.record(func() error { return e.sink.RecordMission(ev) })
}

func (e *Engine) replaced(m *model.Mission, d *model.Drone, l *model.Lamp) {
	rec, ok := e.sink.(coremetrics.ReplacementRecorder)
	if !ok {
		return
	}
	ev := coremetrics.ReplacementEvent{
		MissionID: m.ID,
		DroneID:   d.ID,
		LampID:    l.ID,
		Battery:   d.Battery,
		Container: d.ContainerLampsRemaining,
		EnergyW:   l.EnergyW,
		Time:      e.store.Now(),
	}
	e.record(func() error { return rec.RecordReplacement(ev) })
}

// record queues a sink call so slow sinks never hold the engine lock. It
// must be called with e.mu held.
func (e *Engine) record(fn func() error) {
	if e.closed {
		return
	}
	select {
	case e.events <- fn:
	default:
		sinkDropped.Inc()
		e.log.Warnf("metrics queue full, dropping event")
	}
}

func (e *Engine) drainEvents() {
	defer e.workers.Done()
	defer monitoring.Recover()
	for fn := range e.events {
		if err := fn(); err != nil {
			e.log.Warnf("metrics sink: %v", err)
			monitoring.CaptureException("metrics", err, nil)
		}
	}
}
