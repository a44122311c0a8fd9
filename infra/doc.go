// Package infra holds the adapters around the fleet engine: the zerolog
// logger, the Prometheus and InfluxDB sinks, the MQTT bridge and Sentry
// reporting. They depend only on interfaces from the core packages.
package infra
