// Package factory instantiates pluggable modules, metrics sinks and journal
// backends, from a type name plus a map of raw settings.
//
//	sinks := factory.NewRegistry[metrics.MetricsSink]("metrics sink")
//	_ = sinks.Register("influx", newInfluxSink)
//	s, err := sinks.Create(factory.ModuleConfig{Type: "influx", Conf: map[string]any{"url": "http://influx:8086"}})
package factory
