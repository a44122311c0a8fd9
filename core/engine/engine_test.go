package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/lampfleet/core/fleet"
	coremetrics "github.com/kilianp07/lampfleet/core/metrics"
	"github.com/kilianp07/lampfleet/core/model"
	"github.com/kilianp07/lampfleet/infra/logger"
)

type recordingSink struct {
	mu           sync.Mutex
	missions     []coremetrics.MissionEvent
	replacements []coremetrics.ReplacementEvent
}

func (r *recordingSink) RecordMission(ev coremetrics.MissionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.missions = append(r.missions, ev)
	return nil
}

func (r *recordingSink) RecordReplacement(ev coremetrics.ReplacementEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replacements = append(r.replacements, ev)
	return nil
}

func (r *recordingSink) statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.missions))
	for i, m := range r.missions {
		out[i] = m.Status
	}
	return out
}

type harness struct {
	*Engine
	now  time.Time
	sink *recordingSink
}

// newHarness builds an engine with a manual clock. Mission clocks are
// effectively frozen so tests drive missionTick themselves.
func newHarness(t *testing.T, mutate func(*fleet.Config)) *harness {
	t.Helper()
	ResetMetrics(prometheus.NewRegistry())
	h := &harness{now: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), sink: &recordingSink{}}
	cfg := fleet.DefaultConfig()
	cfg.MissionTickIntervalMs = int(time.Hour / time.Millisecond)
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := New(Options{
		Config: cfg,
		Logger: logger.NopLogger{},
		Sink:   h.sink,
		Clock:  func() time.Time { return h.now },
	})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	h.Engine = e
	return h
}

func (h *harness) advance(d time.Duration) { h.now = h.now.Add(d) }

func (h *harness) failedLamps() []string {
	var ids []string
	for _, l := range h.Snapshot().Lamps {
		if l.Status == model.LampReplace {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

// runMission drives the mission clock until the mission completes.
func (h *harness) runMission(t *testing.T, id string) {
	t.Helper()
	for i := 0; i < 50000; i++ {
		h.advance(250 * time.Millisecond)
		h.missionTick(id)
		m, _ := h.store.Mission(id)
		if m.Status == model.MissionCompleted {
			return
		}
	}
	t.Fatalf("mission %s did not complete", id)
}

func TestNew_CoversEveryDock(t *testing.T) {
	h := newHarness(t, nil)
	snap := h.Snapshot()
	require.Len(t, snap.Drones, len(snap.Docks))
	for i, d := range snap.Drones {
		assert.Equal(t, fmt.Sprintf("drone-%d", i+1), d.ID)
		assert.Equal(t, d.HomeDockID, d.ActiveDockID)
	}
	require.NotNil(t, snap.ActiveDrone)
	assert.Equal(t, snap.Drones[0].ID, snap.ActiveDrone.ID)
	assert.Len(t, h.failedLamps(), h.store.Config().Seed.InitialFailures)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := fleet.DefaultConfig()
	cfg.ReturnBattery = 50
	cfg.MinFlightBattery = 30
	_, err := New(Options{Config: cfg, Logger: logger.NopLogger{}})
	require.Error(t, err)

	_, err = New(Options{Config: fleet.DefaultConfig()})
	require.Error(t, err)
}

func TestFailLamp_BroadcastsSnapshot(t *testing.T) {
	h := newHarness(t, nil)
	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	var target string
	for _, l := range h.Snapshot().Lamps {
		if l.Status == model.LampOK {
			target = l.ID
			break
		}
	}
	require.NoError(t, h.FailLamp(target))

	select {
	case snap := <-sub:
		for _, l := range snap.Lamps {
			if l.ID == target {
				assert.Equal(t, model.LampReplace, l.Status)
			}
		}
		assert.Equal(t, model.LogLampFailed, snap.Log[len(snap.Log)-1].Type)
	case <-time.After(time.Second):
		t.Fatal("no snapshot broadcast")
	}

	require.ErrorIs(t, h.FailLamp("lamp-999"), model.ErrNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(commandsTotal.WithLabelValues("fail_lamp", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(commandsTotal.WithLabelValues("fail_lamp", "not_found")))
}

func TestSetAmbientTemperatureAndAutoService(t *testing.T) {
	h := newHarness(t, nil)
	h.SetAmbientTemperature(-4.5)
	h.SetAutoService(true)
	snap := h.Snapshot()
	assert.Equal(t, -4.5, snap.AmbientTemperature)
	assert.True(t, snap.AutoService)
	for _, l := range snap.Lamps {
		assert.Equal(t, -4.5, l.AmbientTemp)
	}
}

func TestLogClientError(t *testing.T) {
	h := newHarness(t, nil)
	entry := h.LogClientError("render failed", map[string]any{"component": "map"})
	assert.Equal(t, model.LogClientError, entry.Type)
	snap := h.Snapshot()
	assert.Equal(t, entry.ID, snap.Log[len(snap.Log)-1].ID)
}

func TestStartMission_RejectionIsLogged(t *testing.T) {
	h := newHarness(t, nil)
	err := h.StartMission("missing")
	require.ErrorIs(t, err, model.ErrNotFound)

	snap := h.Snapshot()
	last := snap.Log[len(snap.Log)-1]
	assert.Equal(t, model.LogMissionRejected, last.Type)
	assert.Equal(t, "not_found", last.Payload["reason"])
	assert.Equal(t, 1.0, testutil.ToFloat64(missionRejections.WithLabelValues("manual", "not_found")))
}

func TestPlanMission_NoCandidates(t *testing.T) {
	h := newHarness(t, func(c *fleet.Config) { c.Seed.InitialFailures = 0 })
	_, err := h.PlanMission([]string{"lamp-001"})
	require.ErrorIs(t, err, model.ErrResourceUnavailable)
	snap := h.Snapshot()
	assert.Equal(t, model.LogMissionRejected, snap.Log[len(snap.Log)-1].Type)
}

func TestMissionLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	failed := h.failedLamps()
	require.NotEmpty(t, failed)

	m, err := h.PlanMission(failed)
	require.NoError(t, err)
	assert.Equal(t, model.MissionPlanned, m.Status)

	require.NoError(t, h.StartMission(m.ID))
	require.True(t, h.registry.Running(m.ID))
	require.ErrorIs(t, h.StartMission(m.ID), model.ErrInvalidState)

	h.runMission(t, m.ID)
	assert.False(t, h.registry.Running(m.ID))

	snap := h.Snapshot()
	assert.Empty(t, h.failedLamps())
	for _, d := range snap.Drones {
		assert.Empty(t, d.MissionID)
		assert.Empty(t, d.TargetLampID)
	}
	var done model.Mission
	for _, mm := range snap.Missions {
		if mm.ID == m.ID {
			done = mm
		}
	}
	assert.Equal(t, model.MissionCompleted, done.Status)
	assert.ElementsMatch(t, failed, done.CompletedLampIDs)

	require.Eventually(t, func() bool {
		s := h.sink.statuses()
		return len(s) == 2 && s[0] == "running" && s[1] == "completed"
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		h.sink.mu.Lock()
		defer h.sink.mu.Unlock()
		return len(h.sink.replacements) == len(failed)
	}, time.Second, 5*time.Millisecond)
}

func TestMissionTick_UnknownMissionStopsClock(t *testing.T) {
	h := newHarness(t, nil)
	require.True(t, h.registry.Start(h.ctx, "ghost", time.Hour, func() {}))
	h.missionTick("ghost")
	assert.False(t, h.registry.Running("ghost"))
}

func TestTick_Charging(t *testing.T) {
	h := newHarness(t, nil)
	d := h.store.Drones()[0]
	d.Battery = 50
	h.tick()
	assert.Equal(t, model.DroneCharging, d.Status)
	assert.Equal(t, 52.0, d.Battery)

	d.Battery = 99.5
	h.tick()
	assert.Equal(t, 100.0, d.Battery)
	assert.Equal(t, model.DroneIdle, d.Status)
}

func TestTick_RestockAndServiceCompletion(t *testing.T) {
	h := newHarness(t, nil)
	d := h.store.Drones()[0]
	dock, _ := h.store.HomeDock(d)
	full := dock.FullContainers
	require.Positive(t, full)
	d.ContainerLampsRemaining = 0

	h.tick()
	require.Equal(t, model.DroneServicing, d.Status)
	require.NotNil(t, d.ServiceEndsAt)

	h.advance(h.store.Config().DockServiceDuration())
	h.tick()
	assert.Equal(t, h.store.Config().ContainerCapacity, d.ContainerLampsRemaining)
	assert.Equal(t, full-1, dock.FullContainers)
	assert.Nil(t, d.ServiceEndsAt)
	assert.True(t, d.Resting())
}

func TestTick_EmptyDockWaitsForRefill(t *testing.T) {
	h := newHarness(t, nil)
	d := h.store.Drones()[0]
	dock, _ := h.store.HomeDock(d)
	dock.FullContainers = 0
	d.ContainerLampsRemaining = 0

	h.tick()
	assert.True(t, d.Resting())

	h.advance(h.store.Config().RefillInterval())
	h.tick()
	assert.Equal(t, h.store.Config().RefillAmount, dock.FullContainers)
	h.tick()
	assert.Equal(t, model.DroneServicing, d.Status)
}

func TestTick_AutoServiceStartsMission(t *testing.T) {
	h := newHarness(t, func(c *fleet.Config) { c.AutoService = true })
	h.tick()

	var auto []model.Mission
	for _, m := range h.Snapshot().Missions {
		if m.Source == model.SourceAutoService {
			auto = append(auto, m)
		}
	}
	require.Len(t, auto, 1)
	assert.Equal(t, model.MissionRunning, auto[0].Status)
	assert.True(t, h.registry.Running(auto[0].ID))

	// cooldown blocks the next poll
	h.tick()
	count := 0
	for _, m := range h.Snapshot().Missions {
		if m.Source == model.SourceAutoService {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t, func(c *fleet.Config) { c.TickIntervalMs = 5 })
	sub := h.Subscribe()
	defer h.Unsubscribe(sub)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	select {
	case <-sub:
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not return")
	}
}

func TestClose_Idempotent(t *testing.T) {
	h := newHarness(t, nil)
	h.Close()
	h.Close()
	h.tick()
}

func TestReason(t *testing.T) {
	cases := map[error]string{
		nil:                          "ok",
		model.ErrValidation:          "validation",
		model.ErrNotFound:            "not_found",
		model.ErrInvalidState:        "invalid_state",
		model.ErrNoRoute:             "no_route",
		model.ErrResourceUnavailable: "resource_unavailable",
		errors.New("boom"):           "error",
	}
	for err, want := range cases {
		assert.Equal(t, want, Reason(err))
	}
}
