package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stagecoach-io/stagecoach/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunItemStoreContract runs a suite of tests to verify that an ItemStore
// implementation adheres to the defined interface contract, including the
// optimistic versioning discipline.
func RunItemStoreContract(t *testing.T, store ItemStore) {
	ctx := context.Background()
	itemID := "contract-item-" + time.Now().Format("20060102150405")

	newItem := func(id string) *domain.WorkItem {
		return &domain.WorkItem{
			ID:        id,
			Team:      "contract-team",
			Status:    "open",
			Criteria:  map[string]bool{},
			History:   []domain.StatusInterval{{Status: "open", Stage: "triage", EnteredAt: time.Now().UTC()}},
			CreatedAt: time.Now().UTC(),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		item := newItem(itemID)
		item.Attributes = map[string]string{"kind": "feature"}

		require.NoError(t, store.Save(ctx, item), "Save should not return error")

		loaded, err := store.Load(ctx, itemID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, item.Status, loaded.Status)
		assert.Equal(t, "feature", loaded.Attributes["kind"])
		assert.Equal(t, int64(1), loaded.Version, "first save should store version 1")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+itemID)
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
	})

	t.Run("Optimistic Versioning", func(t *testing.T) {
		id := itemID + "-versioned"
		require.NoError(t, store.Save(ctx, newItem(id)))

		first, err := store.Load(ctx, id)
		require.NoError(t, err)
		stale := first.Clone()

		first.Status = "in-progress"
		require.NoError(t, store.Save(ctx, first), "save with matching version should succeed")

		stale.Status = "done"
		err = store.Save(ctx, stale)
		assert.ErrorIs(t, err, domain.ErrVersionMismatch, "save with stale version should fail")

		current, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "in-progress", current.Status, "stale save must not apply")
	})

	t.Run("Delete", func(t *testing.T) {
		id := itemID + "-deleted"
		require.NoError(t, store.Save(ctx, newItem(id)))

		require.NoError(t, store.Delete(ctx, id), "Delete should not return error")

		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrItemNotFound, "Load after Delete should return ErrItemNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := itemID + "-1"
		id2 := itemID + "-2"
		_ = store.Save(ctx, newItem(id1))
		_ = store.Save(ctx, newItem(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
