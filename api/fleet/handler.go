// Package fleet exposes the engine over HTTP and a WebSocket snapshot stream.
package fleet

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/kilianp07/lampfleet/api/command"
	corefleet "github.com/kilianp07/lampfleet/core/fleet"
	"github.com/kilianp07/lampfleet/core/journal"
	"github.com/kilianp07/lampfleet/core/logger"
	"github.com/kilianp07/lampfleet/core/model"
)

// Engine is the part of the engine the HTTP layer needs.
type Engine interface {
	command.Target
	Snapshot() corefleet.Snapshot
	Subscribe() <-chan corefleet.Snapshot
	Unsubscribe(ch <-chan corefleet.Snapshot)
}

// Server holds the HTTP handlers.
type Server struct {
	eng      Engine
	logs     journal.LogStore
	token    string
	log      logger.Logger
	upgrader websocket.Upgrader
}

// NewServer creates the handlers. logs may be nil when no journal is
// configured; token protects the log endpoint when non-empty.
func NewServer(eng Engine, logs journal.LogStore, token string, log logger.Logger) *Server {
	if logs == nil {
		logs = journal.NopStore{}
	}
	return &Server{
		eng:   eng,
		logs:  logs,
		token: token,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Routes registers every endpoint on a new mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", s.state)
	mux.HandleFunc("POST /api/commands", s.commands)
	mux.HandleFunc("POST /api/lamps/{id}/fail", s.command(command.FailLamp))
	mux.HandleFunc("POST /api/missions", s.command(command.PlanMission))
	mux.HandleFunc("POST /api/missions/{id}/start", s.command(command.StartMission))
	mux.HandleFunc("POST /api/auto-service", s.command(command.ToggleAutoService))
	mux.HandleFunc("POST /api/ambient-temperature", s.command(command.SetAmbientTemperature))
	mux.HandleFunc("POST /api/client-errors", s.command(command.LogClientError))
	mux.Handle("GET /api/drones", NewDroneHandler(s.eng))
	mux.Handle("GET /api/logs", NewLogHandler(s.logs, s.token))
	mux.HandleFunc("GET /ws", s.stream)
	return mux
}

func (s *Server) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Snapshot())
}

func (s *Server) commands(w http.ResponseWriter, r *http.Request) {
	c, err := command.Decode(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	s.apply(w, c)
}

// command builds a handler for a single command type. Path ids override
// the body.
func (s *Server) command(t command.Type) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := decodeOptional(r.Body)
		if err != nil {
			writeError(w, err)
			return
		}
		c.Type = t
		if id := r.PathValue("id"); id != "" {
			switch t {
			case command.FailLamp:
				c.LampID = id
			case command.StartMission:
				c.MissionID = id
			}
		}
		s.apply(w, c)
	}
}

func (s *Server) apply(w http.ResponseWriter, c command.Command) {
	res, err := command.Apply(s.eng, c)
	if err != nil {
		s.log.Debugf("command %s rejected: %v", c.Type, err)
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if c.Type == command.PlanMission {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func decodeOptional(body io.Reader) (command.Command, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return command.Command{}, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return command.Command{}, nil
	}
	return command.Decode(strings.NewReader(string(data)))
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, model.ErrResourceUnavailable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusFor(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
