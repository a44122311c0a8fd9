package autoservice

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/lampfleet/core/dispatch"
	"github.com/kilianp07/lampfleet/core/fleet"
	"github.com/kilianp07/lampfleet/core/geo"
	"github.com/kilianp07/lampfleet/core/model"
	"github.com/kilianp07/lampfleet/infra/logger"
)

type env struct {
	store *fleet.Store
	ctrl  *dispatch.Controller
	now   time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	e.store = fleet.NewStore(fleet.DefaultConfig(), logger.NopLogger{})
	e.store.SetClock(func() time.Time { return e.now })
	e.store.EnsureCoverage()
	for _, l := range e.store.Lamps() {
		l.Status = model.LampOK
	}
	e.ctrl = dispatch.NewController(e.store, logger.NopLogger{}, dispatch.Hooks{})
	return e
}

func (e *env) fail(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, e.store.MarkLampForReplacement(id))
	}
}

type failingStarter struct{ calls int }

func (f *failingStarter) TryStartMission(string) error {
	f.calls++
	return model.ErrNoRoute
}

func TestPoll_Disabled(t *testing.T) {
	e := newEnv(t)
	e.fail(t, "lamp-001")
	s := New(e.store, e.ctrl, Plan{"drone-1": {"lamp-001"}}, logger.NopLogger{})
	m, err := s.Poll()
	assert.NoError(t, err)
	assert.Nil(t, m)
}

func TestPoll_ManualMissionTakesPriority(t *testing.T) {
	e := newEnv(t)
	e.fail(t, "lamp-001", "lamp-002")
	e.store.SetAutoService(true)
	_, err := e.ctrl.PlanMission([]string{"lamp-002"})
	require.NoError(t, err)
	s := New(e.store, e.ctrl, Plan{"drone-1": {"lamp-001"}}, logger.NopLogger{})
	m, err := s.Poll()
	assert.NoError(t, err)
	assert.Nil(t, m)
}

func TestPoll_StartsMissionAndAdvancesCursor(t *testing.T) {
	e := newEnv(t)
	e.store.SetAutoService(true)
	capacity := e.store.Config().ContainerCapacity
	round := []string{"lamp-001", "lamp-002", "lamp-003", "lamp-004", "lamp-005", "lamp-006", "lamp-007", "lamp-008"}
	e.fail(t, round...)
	s := New(e.store, e.ctrl, Plan{"drone-1": round}, logger.NopLogger{})

	m, err := s.Poll()
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, model.SourceAutoService, m.Source)
	assert.Equal(t, model.MissionRunning, m.Status)
	assert.Equal(t, []string{"drone-1"}, m.AssignedDrones)
	assert.ElementsMatch(t, round[:capacity], m.DroneRoutes["drone-1"])
	assert.Equal(t, capacity, s.Cursor("drone-1"))

	// Cooldown blocks the next attempt.
	m2, err := s.Poll()
	assert.NoError(t, err)
	assert.Nil(t, m2)
}

func TestPoll_SkipsOccupiedAndHealthyLamps(t *testing.T) {
	e := newEnv(t)
	e.store.SetAutoService(true)
	e.fail(t, "lamp-001", "lamp-003")
	e.store.Drones()[3].TargetLampID = "lamp-003"
	s := New(e.store, e.ctrl, Plan{
		"drone-1": {"lamp-001", "lamp-002", "lamp-003"},
		"drone-2": {"lamp-001"},
	}, logger.NopLogger{})

	m, err := s.Poll()
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, []string{"lamp-001"}, m.RouteLampIDs)
	assert.Equal(t, []string{"drone-1"}, m.AssignedDrones)
}

func TestPoll_FailedStartKeepsCursor(t *testing.T) {
	e := newEnv(t)
	e.store.SetAutoService(true)
	e.fail(t, "lamp-001", "lamp-002")
	starter := &failingStarter{}
	s := New(e.store, starter, Plan{"drone-1": {"lamp-001", "lamp-002"}}, logger.NopLogger{})

	m, err := s.Poll()
	assert.True(t, errors.Is(err, model.ErrNoRoute))
	assert.Nil(t, m)
	assert.Equal(t, 0, s.Cursor("drone-1"))
	assert.Empty(t, e.store.Missions(), "failed mission is discarded")
	last := e.store.Log()[len(e.store.Log())-1]
	assert.Equal(t, model.LogAutoServiceFailed, last.Type)

	_, _ = s.Poll()
	assert.Equal(t, 1, starter.calls, "no retry inside the cooldown window")

	e.now = e.now.Add(e.store.Config().AutoCooldown())
	_, _ = s.Poll()
	assert.Equal(t, 2, starter.calls)
	assert.Equal(t, 0, s.Cursor("drone-1"))
}

func TestPoll_CursorWrapsAround(t *testing.T) {
	e := newEnv(t)
	e.store.SetAutoService(true)
	d, _ := e.store.Drone("drone-1")
	d.ContainerLampsRemaining = 1
	round := []string{"lamp-001", "lamp-002", "lamp-003"}
	e.fail(t, "lamp-003")
	s := New(e.store, e.ctrl, Plan{"drone-1": round}, logger.NopLogger{})
	s.cursors["drone-1"] = 2

	m, err := s.Poll()
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, []string{"lamp-003"}, m.RouteLampIDs)
	assert.Equal(t, 0, s.Cursor("drone-1"))
}

func TestPoll_BusyDroneKeepsCursor(t *testing.T) {
	e := newEnv(t)
	e.store.SetAutoService(true)
	busy, _ := e.store.Drone("drone-1")
	busy.Status = model.DroneEnroute
	busy.MissionID = "elsewhere"
	round := []string{"lamp-001", "lamp-002", "lamp-003", "lamp-004", "lamp-005", "lamp-006", "lamp-007", "lamp-008"}
	e.fail(t, round...)
	e.fail(t, "lamp-010")
	s := New(e.store, e.ctrl, Plan{"drone-1": round, "drone-2": {"lamp-010"}}, logger.NopLogger{})

	m, err := s.Poll()
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, []string{"drone-2"}, m.AssignedDrones)
	assert.Equal(t, []string{"lamp-010"}, m.DroneRoutes["drone-2"])
	assert.Equal(t, 0, s.Cursor("drone-1"), "lamps of a busy drone stay at the head of its round")

	busy.Status = model.DroneIdle
	busy.MissionID = ""
	e.now = e.now.Add(e.store.Config().AutoCooldown())
	m, err = s.Poll()
	require.NoError(t, err)
	require.NotNil(t, m)
	capacity := busy.ContainerLampsRemaining
	assert.ElementsMatch(t, round[:capacity], m.DroneRoutes["drone-1"])
	assert.Equal(t, capacity, s.Cursor("drone-1"))
}

func TestDerivePlanCoversEveryLampOnce(t *testing.T) {
	e := newEnv(t)
	plan := DerivePlan(e.store)
	seen := map[string]int{}
	for droneID, round := range plan {
		d, ok := e.store.Drone(droneID)
		require.True(t, ok)
		home, _ := e.store.HomeDock(d)
		for _, id := range round {
			seen[id]++
			l, _ := e.store.Lamp(id)
			for _, dock := range e.store.Docks() {
				assert.LessOrEqual(t, distance(home, l), distance(dock, l)+1e-9)
			}
		}
	}
	assert.Len(t, seen, len(e.store.Lamps()))
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func distance(d *model.Dock, l *model.Lamp) float64 {
	return geo.Distance(d.Point(), l.Point())
}

func TestLoadPlan(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("drones:\n  drone-1: [lamp-001, lamp-002]\n  drone-2: [lamp-003]\n"), 0o644))
	plan, err := LoadPlan(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"lamp-001", "lamp-002"}, plan["drone-1"])
	assert.Equal(t, []string{"lamp-003"}, plan["drone-2"])

	jsonPlan, err := DecodePlan(strings.NewReader(`{"drones":{"drone-1":["lamp-009"]}}`), "json")
	require.NoError(t, err)
	assert.Equal(t, []string{"lamp-009"}, jsonPlan["drone-1"])

	_, err = DecodePlan(strings.NewReader(""), "toml")
	assert.Error(t, err)
	_, err = LoadPlan(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
