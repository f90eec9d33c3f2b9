// Package registry holds the active ResolvedConfig per team. One engine
// instance serves many teams; the registry is the explicit global-state
// boundary, created at engine init and torn down with it.
package registry

import (
	"sync"

	"github.com/stagecoach-io/stagecoach/pkg/domain"
)

// Registry manages active and historical ResolvedConfig versions by team id.
// Configs are immutable; activation replaces the active pointer while older
// versions stay retrievable for the items still bound to them.
type Registry struct {
	mu       sync.RWMutex
	active   map[string]*domain.ResolvedConfig
	versions map[string]map[int]*domain.ResolvedConfig
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		active:   make(map[string]*domain.ResolvedConfig),
		versions: make(map[string]map[int]*domain.ResolvedConfig),
	}
}

// Activate installs cfg as the team's active config and remembers it by
// version. Existing versions are never overwritten in place.
func (r *Registry) Activate(cfg *domain.ResolvedConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.active[cfg.Team] = cfg
	if r.versions[cfg.Team] == nil {
		r.versions[cfg.Team] = make(map[int]*domain.ResolvedConfig)
	}
	r.versions[cfg.Team][cfg.Version] = cfg
}

// Active returns the team's current config.
func (r *Registry) Active(teamID string) (*domain.ResolvedConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.active[teamID]
	return cfg, ok
}

// Version returns a specific config version for a team, for items created
// under an older edit.
func (r *Registry) Version(teamID string, version int) (*domain.ResolvedConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.versions[teamID][version]
	return cfg, ok
}

// NextVersion returns the version number a fresh activation should use.
func (r *Registry) NextVersion(teamID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	next := 1
	for v := range r.versions[teamID] {
		if v >= next {
			next = v + 1
		}
	}
	return next
}

// Teams lists the ids with an active config.
func (r *Registry) Teams() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.active))
	for id := range r.active {
		out = append(out, id)
	}
	return out
}
