package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/lampfleet/config"
	"github.com/kilianp07/lampfleet/core/journal"
	"github.com/kilianp07/lampfleet/core/model"
)

var (
	logsType    string
	logsMission string
	logsLimit   int
	logsSince   time.Duration
	logsJSON    bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Query the persisted fleet journal",
	RunE:  runLogs,
}

func init() {
	logsCmd.Flags().StringVar(&logsType, "type", "", "only entries of this type, e.g. lamp_replaced")
	logsCmd.Flags().StringVar(&logsMission, "mission", "", "only entries of this mission id")
	logsCmd.Flags().IntVar(&logsLimit, "limit", 50, "newest entries to print, 0 for all")
	logsCmd.Flags().DurationVar(&logsSince, "since", 0, "only entries newer than this duration")
	logsCmd.Flags().BoolVar(&logsJSON, "json", false, "print entries as JSON lines")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := journal.Open(cfg.Journal.Backend, cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	q := journal.Query{Type: model.LogType(logsType), MissionID: logsMission, Limit: logsLimit}
	if logsSince > 0 {
		q.Start = time.Now().Add(-logsSince)
	}
	entries, err := store.Query(context.Background(), q)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	for _, e := range entries {
		if logsJSON {
			if err := enc.Encode(e); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(out, "%s  %-22s %s\n", e.Timestamp.Format(time.RFC3339), e.Type, e.Message)
	}
	return nil
}
