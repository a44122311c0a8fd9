package engine

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/lampfleet/core/model"
)

var (
	tickLatency       *prometheus.HistogramVec
	commandsTotal     *prometheus.CounterVec
	missionRejections *prometheus.CounterVec
	sinkDropped       prometheus.Counter
	snapshotsEvicted  prometheus.Counter
)

func newCollectors() {
	tickLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lampfleet_tick_duration_seconds",
			Help:    "Time spent holding the engine lock per tick",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
		[]string{"loop"},
	)
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lampfleet_commands_total",
			Help: "Inbound commands by outcome",
		},
		[]string{"command", "result"},
	)
	missionRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lampfleet_mission_rejections_total",
			Help: "Mission starts refused by the dispatch controller",
		},
		[]string{"source", "reason"},
	)
	sinkDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lampfleet_sink_events_dropped_total",
			Help: "Metric sink events dropped because the queue was full",
		},
	)
	snapshotsEvicted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lampfleet_snapshots_evicted_total",
			Help: "Stale snapshots discarded from slow observer buffers",
		},
	)
}

func init() {
	newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers engine metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(tickLatency, commandsTotal, missionRejections, sinkDropped, snapshotsEvicted)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

// Reason maps a command error to a short label.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrValidation):
		return "validation"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, model.ErrNoRoute):
		return "no_route"
	case errors.Is(err, model.ErrResourceUnavailable):
		return "resource_unavailable"
	default:
		return "error"
	}
}

func observeCommand(name string, err error) {
	commandsTotal.WithLabelValues(name, Reason(err)).Inc()
}
