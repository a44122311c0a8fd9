// Package metrics defines the recorders used to observe missions,
// replacements and the fleet. Sinks like PromSink and InfluxSink live in
// infra/metrics and can be combined with NewMultiSink. NewMetricsSink returns
// a MultiSink automatically when multiple sinks are configured.
package metrics
