package pipeline

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Registry maps enricher names to factories. It is populated once at
// startup; lookups are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name. Empty and duplicate names are errors.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("enricher name must not be empty")
	}
	if f == nil {
		return fmt.Errorf("enricher %q: nil factory", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.factories[name]; dup {
		return fmt.Errorf("enricher %q already registered", name)
	}
	r.factories[name] = f

	slog.Debug("registered enricher", "enricher", name)
	return nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
