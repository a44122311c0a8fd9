// Package journal mirrors the domain event log to durable storage so entries
// survive beyond the in-memory history kept by the fleet store.
package journal

import (
	"context"
	"time"

	"github.com/kilianp07/lampfleet/core/factory"
	"github.com/kilianp07/lampfleet/core/model"
)

// Query defines filters for retrieving entries. Zero values disable a filter.
type Query struct {
	Start     time.Time
	End       time.Time
	Type      model.LogType
	MissionID string
	Limit     int
}

// LogStore persists log entries and supports querying.
type LogStore interface {
	Append(ctx context.Context, e model.LogEntry) error
	Query(ctx context.Context, q Query) ([]model.LogEntry, error)
	Close() error
}

var backends = factory.NewRegistry[LogStore]("journal backend")

type fileConf struct {
	Path string `json:"path"`
}

func init() {
	_ = backends.Register("none", func(map[string]any) (LogStore, error) { return NopStore{}, nil })
	_ = backends.Register("jsonl", func(conf map[string]any) (LogStore, error) {
		var c fileConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewJSONLStore(c.Path)
	})
	_ = backends.Register("sqlite", func(conf map[string]any) (LogStore, error) {
		var c fileConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSQLiteStore(c.Path)
	})
}

// Backends lists the available store types.
func Backends() []string { return backends.Names() }

// Open returns the store for backend. An empty backend yields a NopStore.
func Open(backend, path string) (LogStore, error) {
	if backend == "" {
		backend = "none"
	}
	return backends.Create(factory.ModuleConfig{Type: backend, Conf: map[string]any{"path": path}})
}

// NopStore discards every entry.
type NopStore struct{}

func (NopStore) Append(context.Context, model.LogEntry) error { return nil }
func (NopStore) Query(context.Context, Query) ([]model.LogEntry, error) {
	return nil, nil
}
func (NopStore) Close() error { return nil }

func (q Query) match(e model.LogEntry) bool {
	if !q.Start.IsZero() && e.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && e.Timestamp.After(q.End) {
		return false
	}
	if q.Type != "" && e.Type != q.Type {
		return false
	}
	if q.MissionID != "" {
		id, _ := e.Payload["missionId"].(string)
		if id != q.MissionID {
			return false
		}
	}
	return true
}
