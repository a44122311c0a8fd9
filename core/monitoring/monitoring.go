// Package monitoring routes unexpected errors and panics to an error tracker.
// The default monitor discards everything.
package monitoring

import (
	"sync"
	"time"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	CapturePanic(v any)
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) CapturePanic(any)                          {}
func (NopMonitor) Flush(time.Duration)                       {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init sets the global monitor. A nil monitor restores the no-op default.
func Init(m Monitor) {
	mu.Lock()
	defer mu.Unlock()
	if m == nil {
		m = NopMonitor{}
	}
	current = m
}

func get() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException records err tagged with the reporting component.
func CaptureException(component string, err error, tags map[string]string) {
	if err == nil {
		return
	}
	t := map[string]string{"component": component}
	for k, v := range tags {
		t[k] = v
	}
	get().CaptureException(err, t)
}

// Recover reports a panic and re-raises it. It must be deferred directly by
// the goroutine it protects.
func Recover() {
	if r := recover(); r != nil {
		get().CapturePanic(r)
		panic(r)
	}
}

// Flush waits up to d for buffered events to be delivered.
func Flush(d time.Duration) { get().Flush(d) }
