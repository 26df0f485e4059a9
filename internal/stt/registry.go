package stt

import (
	"sort"
	"strings"
	"sync"

	"scribe/internal/apperr"
	"scribe/internal/logging"
)

// Factory constructs a backend. It runs on the first resolution of its
// name, so credential checks and client setup only happen for providers
// that are actually requested.
type Factory func() (Capability, error)

type entry struct {
	mu       sync.Mutex
	factory  Factory
	instance Capability
}

// Registry maps provider names to lazily constructed capabilities.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[normalizeName(name)] = &entry{factory: factory}
}

// Resolve returns the capability registered under name, constructing it
// on first use. Unknown names are client faults; construction failures
// are server faults and are not cached.
func (r *Registry) Resolve(name string) (Capability, error) {
	key := normalizeName(name)

	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return nil, apperr.UnknownProvider(key)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.instance != nil {
		return e.instance, nil
	}

	instance, err := e.factory()
	if err != nil {
		logging.Component("stt").Error().Err(err).Str("provider", key).Msg("provider failed to load")
		return nil, apperr.ProviderLoad(key, err)
	}
	e.instance = instance
	logging.Component("stt").Info().Str("provider", key).Msg("provider initialized")
	return instance, nil
}

// Names returns the sorted registered provider names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
