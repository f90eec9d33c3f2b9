package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/stagecoach-io/stagecoach/pkg/domain"
	"github.com/stagecoach-io/stagecoach/pkg/schema"
)

// Source implements ports.ConfigSource over maps, for tests and for hosts
// that assemble documents programmatically.
type Source struct {
	mu        sync.RWMutex
	teams     map[string]*schema.Document
	fragments map[string]*schema.Document
}

// NewSource creates an empty config source.
func NewSource() *Source {
	return &Source{
		teams:     make(map[string]*schema.Document),
		fragments: make(map[string]*schema.Document),
	}
}

// PutTeam registers (or replaces) a team document.
func (s *Source) PutTeam(id string, doc *schema.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[id] = doc
}

// PutFragment registers (or replaces) a shared fragment.
func (s *Source) PutFragment(name string, doc *schema.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fragments[name] = doc
}

// Team implements ports.ConfigSource.
func (s *Source) Team(ctx context.Context, id string) (*schema.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.teams[id]
	if !ok {
		return nil, fmt.Errorf("team %q: %w", id, domain.ErrTeamNotFound)
	}
	return doc, nil
}

// Fragment implements ports.ConfigSource.
func (s *Source) Fragment(ctx context.Context, name string) (*schema.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.fragments[name]
	if !ok {
		return nil, fmt.Errorf("fragment %q: %w", name, domain.ErrTeamNotFound)
	}
	return doc, nil
}

// Teams implements ports.ConfigSource.
func (s *Source) Teams(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.teams))
	for id := range s.teams {
		ids = append(ids, id)
	}
	return ids, nil
}
