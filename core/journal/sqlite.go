package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/lampfleet/core/model"
)

// SQLiteStore persists entries to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS event_log (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        id TEXT,
        ts INTEGER,
        type TEXT,
        mission_id TEXT,
        entry TEXT
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the entry to the database.
func (s *SQLiteStore) Append(ctx context.Context, e model.LogEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	missionID, _ := e.Payload["missionId"].(string)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO event_log (id, ts, type, mission_id, entry) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.UnixMilli(), string(e.Type), missionID, string(b))
	return err
}

// Query returns entries matching q in insertion order.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]model.LogEntry, error) {
	var args []any
	query := `SELECT entry FROM event_log WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixMilli())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixMilli())
	}
	if q.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(q.Type))
	}
	if q.MissionID != "" {
		query += ` AND mission_id = ?`
		args = append(args, q.MissionID)
	}
	query += ` ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.LogEntry
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var e model.LogEntry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("unmarshal entry: %w", err)
		}
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if q.Limit > 0 && len(res) > q.Limit {
		res = res[len(res)-q.Limit:]
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
