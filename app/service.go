package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/lampfleet/api/command"
	apifleet "github.com/kilianp07/lampfleet/api/fleet"
	"github.com/kilianp07/lampfleet/config"
	"github.com/kilianp07/lampfleet/core/engine"
	"github.com/kilianp07/lampfleet/core/journal"
	coremetrics "github.com/kilianp07/lampfleet/core/metrics"
	coremon "github.com/kilianp07/lampfleet/core/monitoring"
	coremqtt "github.com/kilianp07/lampfleet/core/mqtt"
	"github.com/kilianp07/lampfleet/infra/logger"
	"github.com/kilianp07/lampfleet/infra/metrics"
	"github.com/kilianp07/lampfleet/infra/monitoring"
	"github.com/kilianp07/lampfleet/infra/mqtt"
)

// Service wires the engine to its transports, sinks and journal.
type Service struct {
	Engine *engine.Engine

	cfg     *config.Config
	journal journal.LogStore
	sink    coremetrics.MetricsSink
	client  coremqtt.Client
	bridge  *mqtt.Bridge
	server  *http.Server
	log     logger.Logger
}

// New creates a Service from the configuration. MQTT is only connected when
// a broker is configured.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	store, err := journal.Open(cfg.Journal.Backend, cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	eng, err := engine.New(engine.Options{
		Config:  cfg.Engine,
		Logger:  logger.New("engine"),
		Journal: store,
		Sink:    sink,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("engine: %w", err)
	}

	svc := &Service{Engine: eng, cfg: cfg, journal: store, sink: sink, log: logg}
	if cfg.MQTT.Enabled() {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			eng.Close()
			_ = store.Close()
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.client = client
		svc.bridge = mqtt.NewBridge(client, cfg.MQTT.Prefix(), command.Handler(eng), logger.New("mqtt_bridge"))
	}

	api := apifleet.NewServer(eng, store, cfg.HTTP.LogToken, logger.New("api"))
	svc.server = &http.Server{Addr: cfg.HTTP.Address, Handler: api.Routes(), ReadHeaderTimeout: 5 * time.Second}
	return svc, nil
}

// Run starts every component and blocks until the context is cancelled or a
// listener fails.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errs := make(chan error, 4)

	go func() {
		defer coremon.Recover()
		if err := s.Engine.Run(ctx); err != nil {
			errs <- fmt.Errorf("engine: %w", err)
		}
	}()
	metrics.StartSnapshotCollector(ctx, s.Engine.Bus(), s.sink)
	if s.bridge != nil {
		go func() {
			defer coremon.Recover()
			if err := s.bridge.Run(ctx, s.Engine.Bus()); err != nil {
				errs <- fmt.Errorf("mqtt bridge: %w", err)
			}
		}()
	}
	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, port); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	go func() {
		s.log.Infof("serving API on %s", s.cfg.HTTP.Address)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errs:
		s.log.Errorf("%v", runErr)
		coremon.CaptureException("service", runErr, nil)
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("http shutdown: %v", err)
	}
	return runErr
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.Engine.Close()
	if s.client != nil {
		s.client.Disconnect()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	coremon.Flush(2 * time.Second)
	return s.journal.Close()
}
