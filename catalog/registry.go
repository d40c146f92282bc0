package catalog

import (
	"fmt"
	"slices"
	"sync"
)

// Registry maps stage names to stage descriptors. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]func() any
}

// NewRegistry returns an empty stage registry.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[string]func() any)}
}

// Register adds a stage descriptor under name. The same descriptor is
// shared by every pipeline built from the registry, so it must be
// stateless. Overwrites any existing registration.
func (r *Registry) Register(name string, desc any) {
	r.RegisterFactory(name, func() any { return desc })
}

// RegisterFactory adds a constructor for stateful stages; every lookup
// returns a fresh descriptor.
func (r *Registry) RegisterFactory(name string, factory func() any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stages == nil {
		r.stages = make(map[string]func() any)
	}
	r.stages[name] = factory
}

// Get returns a descriptor for name, or nil and false if not found.
func (r *Registry) Get(name string) (any, bool) {
	r.mu.RLock()
	factory, ok := r.stages[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return factory(), true
}

// MustGet returns a descriptor for name, or panics if not found.
func (r *Registry) MustGet(name string) any {
	d, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("catalog: stage %q not registered", name))
	}
	return d
}

// Names returns all registered stage names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stages))
	for n := range r.stages {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
