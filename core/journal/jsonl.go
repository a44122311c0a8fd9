package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/kilianp07/lampfleet/core/model"
)

// JSONLStore appends entries to a JSON lines file.
type JSONLStore struct {
	path string
	mu   sync.Mutex
}

func NewJSONLStore(path string) (*JSONLStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	return &JSONLStore{path: path}, nil
}

func (s *JSONLStore) Append(ctx context.Context, e model.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return json.NewEncoder(f).Encode(e)
}

// Query scans the whole file. Malformed lines are skipped.
func (s *JSONLStore) Query(ctx context.Context, q Query) ([]model.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	var res []model.LogEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e model.LogEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if !q.match(e) {
			continue
		}
		res = append(res, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if q.Limit > 0 && len(res) > q.Limit {
		res = res[len(res)-q.Limit:]
	}
	return res, nil
}

func (s *JSONLStore) Close() error { return nil }
