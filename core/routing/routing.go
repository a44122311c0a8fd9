// Package routing builds visiting orders and per-drone route assignments over
// geographic stops. Distances are always geo.Distance in kilometers.
package routing

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/lampfleet/core/geo"
)

// ExactLimit is the largest stop count ordered by exhaustive search.
const ExactLimit = 8

// improvementEpsilon guards 2-opt and insertion against float noise loops.
const improvementEpsilon = 1e-12

// Stop is a point that has to be visited.
type Stop struct {
	ID    string
	Point geo.Point
}

// Vehicle is a drone candidate for route assignment.
type Vehicle struct {
	ID       string
	Position geo.Point
	Capacity int
}

// Routes maps a vehicle id to its ordered stops.
type Routes map[string][]Stop

// IDs returns the stop ids of the route for vehicle id.
func (r Routes) IDs(id string) []string {
	stops := r[id]
	ids := make([]string, len(stops))
	for i, s := range stops {
		ids[i] = s.ID
	}
	return ids
}

// RouteLength returns the path length from start through every stop in order.
func RouteLength(start geo.Point, stops []Stop) float64 {
	if len(stops) == 0 {
		return 0
	}
	legs := make([]float64, len(stops))
	cur := start
	for i, s := range stops {
		legs[i] = geo.Distance(cur, s.Point)
		cur = s.Point
	}
	return floats.Sum(legs)
}

// OrderRoute returns the stops in visiting order starting at start. Up to
// ExactLimit stops the order is the exact shortest path; larger sets use
// greedy nearest neighbour.
func OrderRoute(stops []Stop, start geo.Point) []Stop {
	if len(stops) <= 1 {
		return append([]Stop(nil), stops...)
	}
	if len(stops) <= ExactLimit {
		return exactOrder(stops, start)
	}
	return NearestNeighbor(start, stops)
}

// NearestNeighbor repeatedly visits the closest unvisited stop.
func NearestNeighbor(start geo.Point, stops []Stop) []Stop {
	remaining := append([]Stop(nil), stops...)
	out := make([]Stop, 0, len(stops))
	cur := start
	for len(remaining) > 0 {
		d := make([]float64, len(remaining))
		for i, s := range remaining {
			d[i] = geo.Distance(cur, s.Point)
		}
		idx := floats.MinIdx(d)
		next := remaining[idx]
		out = append(out, next)
		cur = next.Point
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return out
}

// exactOrder enumerates permutations depth first, pruning branches that are
// already longer than the best complete path. Ties keep the first order found.
func exactOrder(stops []Stop, start geo.Point) []Stop {
	n := len(stops)
	fromStart := make([]float64, n)
	dist := make([][]float64, n)
	for i := range stops {
		fromStart[i] = geo.Distance(start, stops[i].Point)
		dist[i] = make([]float64, n)
		for j := range stops {
			dist[i][j] = geo.Distance(stops[i].Point, stops[j].Point)
		}
	}

	best := math.Inf(1)
	bestPerm := make([]int, n)
	perm := make([]int, 0, n)
	used := make([]bool, n)
	var search func(last int, acc float64)
	search = func(last int, acc float64) {
		if acc >= best {
			return
		}
		if len(perm) == n {
			best = acc
			copy(bestPerm, perm)
			return
		}
		for i := 0; i < n; i++ {
			if used[i] {
				continue
			}
			leg := fromStart[i]
			if last >= 0 {
				leg = dist[last][i]
			}
			used[i] = true
			perm = append(perm, i)
			search(i, acc+leg)
			perm = perm[:len(perm)-1]
			used[i] = false
		}
	}
	search(-1, 0)

	out := make([]Stop, n)
	for i, idx := range bestPerm {
		out[i] = stops[idx]
	}
	return out
}

// AssignByCapacity walks stops in input order and gives each one to the
// nearest vehicle that still has capacity. Vehicles without capacity are
// skipped and stops nobody can take are left out. Each vehicle's list is then
// ordered with OrderRoute from its position.
func AssignByCapacity(stops []Stop, vehicles []Vehicle) Routes {
	capacity := make([]int, len(vehicles))
	for i, v := range vehicles {
		capacity[i] = v.Capacity
	}
	lists := make([][]Stop, len(vehicles))
	order := make([]int, len(vehicles))
	for _, s := range stops {
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return geo.Distance(vehicles[order[a]].Position, s.Point) <
				geo.Distance(vehicles[order[b]].Position, s.Point)
		})
		for _, vi := range order {
			if capacity[vi] <= 0 {
				continue
			}
			lists[vi] = append(lists[vi], s)
			capacity[vi]--
			break
		}
	}

	routes := Routes{}
	for i, v := range vehicles {
		if len(lists[i]) > 0 {
			routes[v.ID] = OrderRoute(lists[i], v.Position)
		}
	}
	return routes
}
