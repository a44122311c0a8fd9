package fleet

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/lampfleet/core/journal"
	"github.com/kilianp07/lampfleet/core/model"
)

// NewLogHandler returns an HTTP handler exposing the journal via GET /api/logs.
// Requests must include an Authorization header with "Bearer <token>" when token is non-empty.
func NewLogHandler(store journal.LogStore, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		q := journal.Query{}
		if s := r.URL.Query().Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := r.URL.Query().Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		q.Type = model.LogType(r.URL.Query().Get("type"))
		q.MissionID = r.URL.Query().Get("mission_id")
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				q.Limit = n
			}
		}
		entries, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []model.LogEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	})
}
