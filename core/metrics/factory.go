package metrics

import (
	"fmt"

	"github.com/kilianp07/lampfleet/core/factory"
)

var sinkRegistry = factory.NewRegistry[MetricsSink]("metrics sink")

// RegisterMetricsSink adds a metrics sink factory identified by name.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinkRegistry.Register(name, f)
}

// SinkTypes lists the registered sink types.
func SinkTypes() []string { return sinkRegistry.Names() }

// NewMetricsSink builds every enabled sink. No enabled sink yields a NopSink
// and several are fanned out through a MultiSink.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	var sinks []MetricsSink
	for i, c := range cfgs {
		if c.Disabled {
			continue
		}
		s, err := sinkRegistry.Create(c)
		if err != nil {
			return nil, fmt.Errorf("sinks[%d]: %w", i, err)
		}
		sinks = append(sinks, s)
	}
	switch len(sinks) {
	case 0:
		return NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return NewMultiSink(sinks...), nil
	}
}
