package config

import (
	"fmt"
	"slices"

	"github.com/kilianp07/lampfleet/core/journal"
)

// JournalConfig defines where domain log entries are persisted.
type JournalConfig struct {
	// Backend selects the log store type: "jsonl", "sqlite" or "none".
	Backend string `json:"backend"`
	// Path is the file location of the log store.
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *JournalConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" && c.Backend != "none" {
		c.Path = "lampfleet-journal." + c.Backend
	}
}

// Validate checks mandatory fields.
func (c JournalConfig) Validate() error {
	if !slices.Contains(journal.Backends(), c.Backend) {
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.Path == "" && c.Backend != "none" {
		return fmt.Errorf("path is required")
	}
	return nil
}
