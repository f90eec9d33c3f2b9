package ports

import (
	"context"

	"github.com/stagecoach-io/stagecoach/pkg/domain"
	"github.com/stagecoach-io/stagecoach/pkg/schema"
)

// ConfigSource loads raw configuration documents.
type ConfigSource interface {
	// Team retrieves the raw document for a team id.
	// Returns domain.ErrTeamNotFound if it does not exist.
	Team(ctx context.Context, id string) (*schema.Document, error)

	// Fragment retrieves a shared fragment by name.
	// Returns domain.ErrTeamNotFound if it does not exist.
	Fragment(ctx context.Context, name string) (*schema.Document, error)

	// Teams lists the team ids the source knows about.
	Teams(ctx context.Context) ([]string, error)
}

// ItemStore persists WorkItems. Saves are optimistic: the stored version must
// match the version the caller read, and the save bumps it by one.
type ItemStore interface {
	// Load retrieves an item by id.
	// Returns domain.ErrItemNotFound if the item does not exist.
	Load(ctx context.Context, id string) (*domain.WorkItem, error)

	// Save persists the item. Returns domain.ErrVersionMismatch when the
	// stored version differs from item.Version; on success the stored
	// version becomes item.Version+1.
	Save(ctx context.Context, item *domain.WorkItem) error

	// Delete removes the item.
	Delete(ctx context.Context, id string) error

	// List returns the ids of all stored items.
	List(ctx context.Context) ([]string, error)
}
