package plugin

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates a fresh, uninitialized plugin instance.
type Factory func() Translator

// Registry is a thread-safe registry of plugin factories keyed by plugin ID.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under id, replacing any existing one.
func (r *Registry) Register(id string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = f
}

// New instantiates the plugin registered under id.
func (r *Registry) New(id string) (Translator, error) {
	r.mu.RLock()
	f, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, &Error{Code: ErrPluginNotFound, Message: fmt.Sprintf("plugin %q not registered", id)}
	}
	return f(), nil
}

// List returns the sorted IDs of all registered plugins.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
