package metrics_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/lampfleet/core/factory"
	metrics "github.com/kilianp07/lampfleet/core/metrics"
	_ "github.com/kilianp07/lampfleet/infra/metrics"
)

func TestSinkTypesIncludesBuiltins(t *testing.T) {
	assert.Subset(t, metrics.SinkTypes(), []string{"influx", "nop", "prometheus"})
}

func TestNewMetricsSinkShapes(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s)

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "influx", Disabled: true}})
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s, "disabled sinks are skipped")

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	require.NoError(t, err)
	m, ok := s.(*metrics.MultiSink)
	if !ok {
		t.Fatalf("expected MultiSink, got %T", s)
	}
	assert.Len(t, m.Sinks, 2)
}

func TestNewMetricsSinkUnknownType(t *testing.T) {
	_, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "statsd"}})
	require.ErrorIs(t, err, factory.ErrUnknownType)
	assert.Contains(t, err.Error(), "sinks[1]")
}

func TestMetricsConfigDecodes(t *testing.T) {
	var fromYAML metrics.Config
	require.NoError(t, yaml.Unmarshal([]byte(`sinks:
  - type: nop
  - type: influx
    disabled: true
    conf:
      url: http://influx:8086
`), &fromYAML))
	require.Len(t, fromYAML.Sinks, 2)
	assert.True(t, fromYAML.Sinks[1].Disabled)
	assert.Equal(t, "http://influx:8086", fromYAML.Sinks[1].Conf["url"])

	var fromJSON metrics.Config
	require.NoError(t, json.Unmarshal([]byte(`{"sinks":[{"type":"nop"}],"prometheus_port":":9100"}`), &fromJSON))
	assert.Equal(t, ":9100", fromJSON.PrometheusPort)
}
