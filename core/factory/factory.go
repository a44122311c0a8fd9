package factory

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
)

// ErrUnknownType is returned by Create for an unregistered module type.
var ErrUnknownType = errors.New("unknown module type")

// ModuleConfig contains the type name and raw configuration for a module.
// Disabled modules are skipped by callers that build lists of modules.
type ModuleConfig struct {
	Type     string         `json:"type"`
	Disabled bool           `json:"disabled"`
	Conf     map[string]any `json:"conf"`
}

// Factory constructs an implementation of T using the provided raw config.
type Factory[T any] func(map[string]any) (T, error)

// Registry stores factories keyed by module type.
type Registry[T any] struct {
	kind      string
	mu        sync.RWMutex
	factories map[string]Factory[T]
}

// NewRegistry returns an empty registry. kind names the module family in
// error messages, e.g. "metrics sink".
func NewRegistry[T any](kind string) *Registry[T] {
	return &Registry[T]{kind: kind, factories: make(map[string]Factory[T])}
}

// Register adds a factory for the given type name.
func (r *Registry[T]) Register(name string, f Factory[T]) error {
	if f == nil {
		return fmt.Errorf("%s %q: nil factory", r.kind, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("%s %q already registered", r.kind, name)
	}
	r.factories[name] = f
	return nil
}

// Names returns the registered type names in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Create instantiates a module based on its configuration.
func (r *Registry[T]) Create(cfg ModuleConfig) (T, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %q (known: %s): %w", r.kind, cfg.Type, strings.Join(r.Names(), ", "), ErrUnknownType)
	}
	m, err := f(cfg.Conf)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s %q: %w", r.kind, cfg.Type, err)
	}
	return m, nil
}

// Decode fills out the provided struct using json tags. Scalar strings are
// converted to the target type so values coming from environment overrides
// decode like their YAML counterparts.
func Decode(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}
