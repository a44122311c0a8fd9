package autoservice

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/lampfleet/core/fleet"
	"github.com/kilianp07/lampfleet/core/geo"
	"github.com/kilianp07/lampfleet/core/routing"
)

// Plan is the ordered maintenance round of every drone, keyed by drone id.
type Plan map[string][]string

type planFile struct {
	Drones map[string][]string `json:"drones" yaml:"drones"`
}

// LoadPlan loads a Plan from a JSON or YAML file.
func LoadPlan(path string) (Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return DecodePlan(f, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// DecodePlan reads a Plan from r in the given format.
func DecodePlan(r io.Reader, format string) (Plan, error) {
	var pf planFile
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&pf); err != nil {
			return nil, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&pf); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported plan format: %s", format)
	}
	return Plan(pf.Drones), nil
}

// DerivePlan assigns every lamp to the drone of its nearest dock and orders
// each round from the dock.
func DerivePlan(store *fleet.Store) Plan {
	droneByDock := make(map[string]string)
	for _, d := range store.Drones() {
		droneByDock[d.HomeDockID] = d.ID
	}
	stops := make(map[string][]routing.Stop)
	for _, l := range store.Lamps() {
		best, bestDist := "", 0.0
		for _, dock := range store.Docks() {
			if _, ok := droneByDock[dock.ID]; !ok {
				continue
			}
			if d := geo.Distance(dock.Point(), l.Point()); best == "" || d < bestDist {
				best, bestDist = dock.ID, d
			}
		}
		if best != "" {
			stops[best] = append(stops[best], routing.Stop{ID: l.ID, Point: l.Point()})
		}
	}
	plan := make(Plan, len(stops))
	for dockID, s := range stops {
		dock, _ := store.Dock(dockID)
		ordered := routing.OrderRoute(s, dock.Point())
		ids := make([]string, len(ordered))
		for i, st := range ordered {
			ids[i] = st.ID
		}
		plan[droneByDock[dockID]] = ids
	}
	return plan
}
