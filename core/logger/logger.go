// Package logger defines the logging contract shared by the engine, the
// transports and the CLI. infra/logger provides the zerolog implementation.
package logger

// Logger exposes logging methods for common severity levels.
type Logger interface {
	Debugf(format string, args ...any)
	// Debugw logs a message with structured fields, e.g. per-tick drone state.
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}
