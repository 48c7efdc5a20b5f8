package provider

import (
	"context"
	"sort"
	"sync"
)

// Registry holds named provider instances so callers can look them up and
// probe their readiness without knowing the concrete backend.
type Registry[T Provider] struct {
	mu        sync.RWMutex
	instances map[string]T
}

// NewRegistry creates a new empty Registry.
func NewRegistry[T Provider]() *Registry[T] {
	return &Registry[T]{
		instances: make(map[string]T),
	}
}

// Register stores a provider instance under its own name.
func (r *Registry[T]) Register(instance T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[instance.Name()] = instance
}

// Get returns a registered provider instance by name.
func (r *Registry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[name]
	return inst, ok
}

// List returns sorted names of all registered providers.
func (r *Registry[T]) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.instances))
	for name := range r.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Availability probes every registered provider and reports readiness by name.
func (r *Registry[T]) Availability(ctx context.Context) map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool, len(r.instances))
	for name, inst := range r.instances {
		out[name] = inst.IsAvailable(ctx)
	}
	return out
}
