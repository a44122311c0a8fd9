package routing

import (
	"math"

	"github.com/kilianp07/lampfleet/core/geo"
)

// OptimizeRoutes jointly plans routes for several vehicles:
//
//  1. seed: the globally closest (vehicle, stop) pair is assigned until
//     vehicles or stops run out;
//  2. cheapest insertion of every remaining stop across all routes;
//  3. 2-opt on each route, including the leg from the vehicle position.
//
// Capacity is not considered here.
func OptimizeRoutes(stops []Stop, vehicles []Vehicle) Routes {
	routes := Routes{}
	if len(stops) == 0 || len(vehicles) == 0 {
		return routes
	}
	remaining := append([]Stop(nil), stops...)
	seeded := make([]bool, len(vehicles))
	lists := make([][]Stop, len(vehicles))

	for seeds := 0; seeds < len(vehicles) && len(remaining) > 0; seeds++ {
		bestV, bestS := -1, -1
		best := math.Inf(1)
		for vi, v := range vehicles {
			if seeded[vi] {
				continue
			}
			for si, s := range remaining {
				if d := geo.Distance(v.Position, s.Point); d < best {
					best, bestV, bestS = d, vi, si
				}
			}
		}
		seeded[bestV] = true
		lists[bestV] = []Stop{remaining[bestS]}
		remaining = append(remaining[:bestS], remaining[bestS+1:]...)
	}

	for len(remaining) > 0 {
		bestS, bestV, bestPos := -1, -1, -1
		best := math.Inf(1)
		for si, s := range remaining {
			for vi, v := range vehicles {
				for pos := 0; pos <= len(lists[vi]); pos++ {
					if inc := insertionCost(v.Position, lists[vi], pos, s); inc < best-improvementEpsilon {
						best, bestS, bestV, bestPos = inc, si, vi, pos
					}
				}
			}
		}
		s := remaining[bestS]
		route := lists[bestV]
		route = append(route, Stop{})
		copy(route[bestPos+1:], route[bestPos:])
		route[bestPos] = s
		lists[bestV] = route
		remaining = append(remaining[:bestS], remaining[bestS+1:]...)
	}

	for vi, v := range vehicles {
		if len(lists[vi]) > 0 {
			routes[v.ID] = TwoOpt(v.Position, lists[vi])
		}
	}
	return routes
}

// insertionCost is the route length increase when s is inserted at pos.
func insertionCost(start geo.Point, route []Stop, pos int, s Stop) float64 {
	prev := start
	if pos > 0 {
		prev = route[pos-1].Point
	}
	if pos == len(route) {
		return geo.Distance(prev, s.Point)
	}
	next := route[pos].Point
	return geo.Distance(prev, s.Point) + geo.Distance(s.Point, next) - geo.Distance(prev, next)
}

// TwoOpt reverses sub-segments of the open path start→stops while doing so
// shortens it. The input slice is not modified.
func TwoOpt(start geo.Point, stops []Stop) []Stop {
	route := append([]Stop(nil), stops...)
	n := len(route)
	for improved := true; improved; {
		improved = false
		for i := 0; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				prev := start
				if i > 0 {
					prev = route[i-1].Point
				}
				a, b := route[i].Point, route[k].Point
				delta := geo.Distance(prev, b) - geo.Distance(prev, a)
				if k+1 < n {
					next := route[k+1].Point
					delta += geo.Distance(a, next) - geo.Distance(b, next)
				}
				if delta < -improvementEpsilon {
					reverse(route[i : k+1])
					improved = true
				}
			}
		}
	}
	return route
}

func reverse(s []Stop) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
