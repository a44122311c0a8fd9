package cmd

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilianp07/lampfleet/config"
	"github.com/kilianp07/lampfleet/core/engine"
	"github.com/kilianp07/lampfleet/core/geo"
	"github.com/kilianp07/lampfleet/core/model"
	"github.com/kilianp07/lampfleet/core/routing"
	"github.com/kilianp07/lampfleet/infra/logger"
)

var (
	planLamps []string
	planJSON  bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Preview drone routes for the seeded city without starting anything",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringSliceVar(&planLamps, "lamps", nil, "lamp ids to plan (default: every failed lamp)")
	planCmd.Flags().BoolVar(&planJSON, "json", false, "print the planned mission as JSON")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	eng, err := engine.New(engine.Options{Config: cfg.Engine, Logger: logger.NopLogger{}})
	if err != nil {
		return err
	}
	defer eng.Close()

	lamps := planLamps
	snap := eng.Snapshot()
	if len(lamps) == 0 {
		for _, l := range snap.Lamps {
			if l.Status == model.LampReplace {
				lamps = append(lamps, l.ID)
			}
		}
	}
	if len(lamps) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no lamps need replacement")
		return nil
	}
	m, err := eng.PlanMission(lamps)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if planJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}

	points := make(map[string]geo.Point, len(snap.Lamps))
	for _, l := range snap.Lamps {
		points[l.ID] = l.Point()
	}
	fmt.Fprintf(out, "mission %s: %d lamps\n", m.ID, len(m.RouteLampIDs))
	for _, d := range snap.Drones {
		route, ok := m.DroneRoutes[d.ID]
		if !ok {
			continue
		}
		stops := make([]routing.Stop, len(route))
		for i, id := range route {
			stops[i] = routing.Stop{ID: id, Point: points[id]}
		}
		km := routing.RouteLength(d.Position, stops)
		fmt.Fprintf(out, "  %-8s %-7s %5.2f km  %s\n", d.ID, d.HomeDockID, km, strings.Join(route, " -> "))
	}
	unassigned := slices.DeleteFunc(slices.Clone(m.RouteLampIDs), func(id string) bool {
		for _, r := range m.DroneRoutes {
			if slices.Contains(r, id) {
				return true
			}
		}
		return false
	})
	if len(unassigned) > 0 {
		fmt.Fprintf(out, "  unassigned: %s\n", strings.Join(unassigned, ", "))
	}
	return nil
}
