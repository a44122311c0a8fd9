// Package autoservice proposes maintenance missions from a fixed per-drone
// round while no manual mission is pending.
package autoservice

import (
	"fmt"
	"time"

	"github.com/kilianp07/lampfleet/core/fleet"
	"github.com/kilianp07/lampfleet/core/logger"
	"github.com/kilianp07/lampfleet/core/model"
	"github.com/kilianp07/lampfleet/core/routing"
)

// Starter starts a planned mission.
type Starter interface {
	TryStartMission(id string) error
}

// Scheduler walks the maintenance plan with one cursor per drone.
type Scheduler struct {
	store   *fleet.Store
	starter Starter
	log     logger.Logger
	plan    Plan

	cursors     map[string]int
	lastAttempt time.Time
}

func New(store *fleet.Store, starter Starter, plan Plan, log logger.Logger) *Scheduler {
	return &Scheduler{
		store:   store,
		starter: starter,
		log:     log,
		plan:    plan,
		cursors: make(map[string]int),
	}
}

// Cursor returns the plan position of droneID.
func (s *Scheduler) Cursor(droneID string) int { return s.cursors[droneID] }

// Poll creates and starts an auto-service mission when the gate is open and
// the plan yields lamps to replace. It returns nil, nil when nothing was
// attempted. Cursors only move for drones the started mission assigned.
func (s *Scheduler) Poll() (*model.Mission, error) {
	if !s.open() {
		return nil, nil
	}
	order, routes, next := s.batches()
	if len(routes) == 0 {
		return nil, nil
	}

	s.lastAttempt = s.store.Now()
	m := s.store.CreateMission(model.SourceAutoService)
	m.SetRoutes(order, routes)
	if err := s.starter.TryStartMission(m.ID); err != nil {
		s.store.DiscardMission(m.ID)
		s.store.AppendLog(model.LogAutoServiceFailed, fmt.Sprintf("auto-service dispatch failed: %v", err),
			map[string]any{"lamps": len(m.RouteLampIDs)})
		s.log.Warnf("auto-service dispatch failed: %v", err)
		return nil, err
	}
	for _, id := range m.AssignedDrones {
		s.cursors[id] = next[id]
	}
	s.store.AppendLog(model.LogAutoService, fmt.Sprintf("auto-service mission %s dispatched", m.ID),
		map[string]any{"missionId": m.ID, "lamps": len(m.RouteLampIDs)})
	return m, nil
}

func (s *Scheduler) open() bool {
	if !s.store.AutoService() {
		return false
	}
	if !s.lastAttempt.IsZero() && s.store.Now().Sub(s.lastAttempt) < s.store.Config().AutoCooldown() {
		return false
	}
	for _, m := range s.store.Missions() {
		if m.Source == model.SourceManual && m.Active() {
			return false
		}
	}
	return true
}

// batches collects, per ready drone, the next lamps of its round that wait for
// replacement and are unclaimed, up to the drone's container stock. Busy
// drones keep their cursor and get no batch.
func (s *Scheduler) batches() ([]string, map[string][]string, map[string]int) {
	occupied := s.store.OccupiedLamps("")
	claimed := make(map[string]bool)
	routes := make(map[string][]string)
	next := make(map[string]int)
	var order []string
	for _, d := range s.store.Drones() {
		round := s.plan[d.ID]
		if len(round) == 0 || !s.store.Ready(d) || d.ContainerLampsRemaining <= 0 {
			continue
		}
		cur := s.cursors[d.ID] % len(round)
		var stops []routing.Stop
		advance := 0
		for advance < len(round) && len(stops) < d.ContainerLampsRemaining {
			id := round[(cur+advance)%len(round)]
			advance++
			l, ok := s.store.Lamp(id)
			if !ok || l.Status != model.LampReplace || occupied[id] || claimed[id] {
				continue
			}
			claimed[id] = true
			stops = append(stops, routing.Stop{ID: id, Point: l.Point()})
		}
		next[d.ID] = (cur + advance) % len(round)
		if len(stops) == 0 {
			continue
		}
		r := routing.OptimizeRoutes(stops, []routing.Vehicle{{ID: d.ID, Position: d.Position, Capacity: d.ContainerLampsRemaining}})
		routes[d.ID] = r.IDs(d.ID)
		order = append(order, d.ID)
	}
	return order, routes, next
}
