// Package collector defines the pluggable-source contract every upstream
// threat feed implements, and a registry keyed by service name that the
// scheduler dispatches ticks through.
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DateRange bounds a collection sweep. Either field may be zero to mean
// "unbounded on that side".
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Record is a single upstream row, normalized just enough to carry it out of
// the collector and into the normalizer (pkg/normalize owns the rest of the
// pipeline).
type Record struct {
	IPAddress   string
	Country     *string
	Reason      string
	Confidence  *int // nil when the source has no opinion; C4 maps confidence itself
	DetectionAt *time.Time
	RemovalAt   *time.Time
	RawPayload  any
}

// Source is the interface every upstream collector implements — modeled on
// the plugin-collector redesign note: a small `{Authenticate, Collect, Name}`
// contract standing in for the source language's runtime registration.
type Source interface {
	// Name returns the service_name this collector is registered under.
	Name() string
	// Authenticate establishes or refreshes a session. Implementations cache
	// validity internally and may no-op if already authenticated.
	Authenticate(ctx context.Context) error
	// Collect drives the strategy sweep for rng and returns every record
	// found, capped at maxPages per strategy.
	Collect(ctx context.Context, rng DateRange, maxPages int) ([]Record, error)
}

// Registry maps service_name to a registered Source.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds a source, replacing any existing registration under the same name.
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Name()] = s
}

// Get returns the source registered under name.
func (r *Registry) Get(name string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("no collector registered for source %q", name)
	}
	return s, nil
}

// Names returns every registered service_name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	return names
}
