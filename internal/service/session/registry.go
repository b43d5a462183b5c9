package session

import "sync"

// Registry hands out one orchestrator store per authenticated user.
type Registry struct {
	mu      sync.Mutex
	stores  map[string]*Store
	factory func(userID string) *Store
}

// NewRegistry builds a registry around a store factory.
func NewRegistry(factory func(userID string) *Store) *Registry {
	return &Registry{
		stores:  make(map[string]*Store),
		factory: factory,
	}
}

// ForUser returns the user's store, creating it on first use.
func (r *Registry) ForUser(userID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	if store, ok := r.stores[userID]; ok {
		return store
	}
	store := r.factory(userID)
	r.stores[userID] = store
	return store
}
