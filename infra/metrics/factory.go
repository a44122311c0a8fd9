package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/lampfleet/core/factory"
	coremetrics "github.com/kilianp07/lampfleet/core/metrics"
)

// Built-in sinks: "nop", "prometheus" and "influx".
func init() {
	_ = coremetrics.RegisterMetricsSink("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})

	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		// The /metrics endpoint is served separately on metrics.prometheus_port.
		return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c struct {
			URL    string `json:"url"`
			Token  string `json:"token"`
			Org    string `json:"org"`
			Bucket string `json:"bucket"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.URL == "" || c.Bucket == "" {
			return nil, errors.New("url and bucket are required")
		}
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	})
}
