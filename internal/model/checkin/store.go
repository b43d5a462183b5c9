package checkin

import (
	"sort"
	"sync"
)

// Store exposes check-in retrieval for the session core.
type Store interface {
	// Recent returns up to limit check-ins for the user, most recent first.
	Recent(userID string, limit int) []CheckIn
}

// MemoryStore implements Store with an in-memory map, suitable while the
// check-in feature's own persistence lives elsewhere.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]CheckIn
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]CheckIn)}
}

// Add records a check-in for the user.
func (s *MemoryStore) Add(userID string, item CheckIn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[userID] = append(s.items[userID], item)
}

// Recent returns up to limit check-ins for the user, most recent first.
func (s *MemoryStore) Recent(userID string, limit int) []CheckIn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := append([]CheckIn(nil), s.items[userID]...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
