// Package memory provides in-memory adapters: an ItemStore for tests and
// single-process deployments, and a ConfigSource fed programmatically.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/stagecoach-io/stagecoach/pkg/domain"
)

// Store implements ports.ItemStore in memory. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[string]*domain.WorkItem
}

// NewStore creates a new in-memory item store.
func NewStore() *Store {
	return &Store{data: make(map[string]*domain.WorkItem)}
}

// Save persists the item, enforcing the optimistic versioning contract.
func (s *Store) Save(ctx context.Context, item *domain.WorkItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.data[item.ID]
	if exists && stored.Version != item.Version {
		return fmt.Errorf("item %q read at v%d, stored v%d: %w",
			item.ID, item.Version, stored.Version, domain.ErrVersionMismatch)
	}

	// Copy on write so the caller can't mutate store state by pointer.
	saved := item.Clone()
	saved.Version = item.Version + 1
	s.data[item.ID] = saved

	item.Version = saved.Version
	return nil
}

// Load retrieves a copy of the item.
func (s *Store) Load(ctx context.Context, id string) (*domain.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("item %q: %w", id, domain.ErrItemNotFound)
	}
	return item.Clone(), nil
}

// Delete removes the item.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List returns the stored item ids.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}
