package fleet

import (
	"net/http"

	corefleet "github.com/kilianp07/lampfleet/core/fleet"
	"github.com/kilianp07/lampfleet/core/model"
)

// Snapshotter provides the current fleet view.
type Snapshotter interface {
	Snapshot() corefleet.Snapshot
}

// NewDroneHandler returns an HTTP handler listing drones via GET /api/drones,
// optionally filtered by status and dock_id.
func NewDroneHandler(src Snapshotter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		status := model.DroneStatus(r.URL.Query().Get("status"))
		dock := r.URL.Query().Get("dock_id")
		out := []model.Drone{}
		for _, d := range src.Snapshot().Drones {
			if status != "" && d.Status != status {
				continue
			}
			if dock != "" && d.HomeDockID != dock {
				continue
			}
			out = append(out, d)
		}
		writeJSON(w, http.StatusOK, out)
	})
}
