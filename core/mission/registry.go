package mission

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/lampfleet/core/monitoring"
)

type task struct {
	cancel context.CancelFunc
}

// Registry runs one ticker task per mission id.
type Registry struct {
	mu     sync.Mutex
	tasks  map[string]*task
	wg     sync.WaitGroup
	closed bool
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*task)}
}

// Start calls fn every interval until ctx is done or Stop(id) is called.
// It returns false when a task is already registered for id or the registry
// is closed.
func (r *Registry) Start(ctx context.Context, id string, interval time.Duration, fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	if _, ok := r.tasks[id]; ok {
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	t := &task{cancel: cancel}
	r.tasks[id] = t
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.remove(id, t)
		defer monitoring.Recover()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	return true
}

// Stop cancels the task for id. Unknown ids are ignored. Stop never waits for
// the task to exit so it is safe to call from within fn.
func (r *Registry) Stop(id string) {
	r.mu.Lock()
	t, ok := r.tasks[id]
	delete(r.tasks, id)
	r.mu.Unlock()
	if ok {
		t.cancel()
	}
}

// Running reports whether a task is registered for id.
func (r *Registry) Running(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[id]
	return ok
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Close stops every task and waits for them to exit. Later Start calls are
// refused.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	for id, t := range r.tasks {
		t.cancel()
		delete(r.tasks, id)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Registry) remove(id string, t *task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.tasks[id]; ok && cur == t {
		delete(r.tasks, id)
	}
	t.cancel()
}
