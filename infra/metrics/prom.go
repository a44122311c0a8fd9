package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/lampfleet/core/metrics"
)

// PromSink records mission, replacement and fleet metrics in Prometheus.
type PromSink struct {
	missions        *prometheus.CounterVec
	missionDuration *prometheus.HistogramVec
	replacements    *prometheus.CounterVec
	lamps           *prometheus.GaugeVec
	battery         *prometheus.GaugeVec
	container       *prometheus.GaugeVec
	dockContainers  *prometheus.GaugeVec
	running         prometheus.Gauge
}

// NewPromSink registers metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by a previous sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		missions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lampfleet_missions_total",
			Help: "Mission lifecycle transitions",
		}, []string{"source", "status"}),
		missionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lampfleet_mission_duration_seconds",
			Help:    "Time from mission start to completion",
			Buckets: prometheus.ExponentialBuckets(5, 2, 8),
		}, []string{"source"}),
		replacements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lampfleet_lamp_replacements_total",
			Help: "Completed cassette replacements",
		}, []string{"drone_id"}),
		lamps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lampfleet_lamps",
			Help: "Lamps per status",
		}, []string{"status"}),
		battery: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lampfleet_drone_battery_percent",
			Help: "Drone battery level",
		}, []string{"drone_id"}),
		container: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lampfleet_drone_container_lamps",
			Help: "Cassettes left in the drone container",
		}, []string{"drone_id"}),
		dockContainers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lampfleet_dock_containers",
			Help: "Containers stored at a dock",
		}, []string{"dock_id", "kind"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lampfleet_running_missions",
			Help: "Missions currently running",
		}),
	}
	var err error
	if s.missions, err = register(reg, s.missions); err != nil {
		return nil, err
	}
	if s.missionDuration, err = register(reg, s.missionDuration); err != nil {
		return nil, err
	}
	if s.replacements, err = register(reg, s.replacements); err != nil {
		return nil, err
	}
	if s.lamps, err = register(reg, s.lamps); err != nil {
		return nil, err
	}
	if s.battery, err = register(reg, s.battery); err != nil {
		return nil, err
	}
	if s.container, err = register(reg, s.container); err != nil {
		return nil, err
	}
	if s.dockContainers, err = register(reg, s.dockContainers); err != nil {
		return nil, err
	}
	if s.running, err = register(reg, s.running); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordMission counts the transition and observes the duration of
// completed missions.
func (s *PromSink) RecordMission(ev coremetrics.MissionEvent) error {
	s.missions.WithLabelValues(ev.Source, ev.Status).Inc()
	if ev.Duration > 0 {
		s.missionDuration.WithLabelValues(ev.Source).Observe(ev.Duration.Seconds())
	}
	return nil
}

// RecordReplacement increments the per-drone replacement counter.
func (s *PromSink) RecordReplacement(ev coremetrics.ReplacementEvent) error {
	s.replacements.WithLabelValues(ev.DroneID).Inc()
	return nil
}

// RecordFleetState sets every fleet gauge.
func (s *PromSink) RecordFleetState(ev coremetrics.FleetStateEvent) error {
	s.lamps.Reset()
	for status, n := range ev.LampsByStatus {
		s.lamps.WithLabelValues(status).Set(float64(n))
	}
	for _, d := range ev.Drones {
		s.battery.WithLabelValues(d.DroneID).Set(d.Battery)
		s.container.WithLabelValues(d.DroneID).Set(float64(d.Container))
	}
	for _, d := range ev.Docks {
		s.dockContainers.WithLabelValues(d.DockID, "full").Set(float64(d.Full))
		s.dockContainers.WithLabelValues(d.DockID, "empty").Set(float64(d.Empty))
	}
	s.running.Set(float64(ev.RunningMissions))
	return nil
}
