package sources

import (
	"fmt"
	"sort"
	"sync"

	"jobsieve/internal/services"
)

// Registry maps source kinds to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry returns a registry with the built-in adapters bound to client.
func NewRegistry(client *Client) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	r.Register(NewAdzuna(client))
	r.Register(NewGreenhouse(client))
	r.Register(NewHTML(client))
	return r
}

// Register adds or replaces the adapter for its kind.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.adapters == nil {
		r.adapters = make(map[string]Adapter)
	}
	r.adapters[a.Kind()] = a
}

// Lookup returns the adapter for kind.
func (r *Registry) Lookup(kind string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[kind]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "sources", "lookup", fmt.Sprintf("no adapter for kind %q", kind), nil)
	}
	return a, nil
}

// Kinds lists registered kinds in order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
