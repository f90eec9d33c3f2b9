package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	redisAdapter "github.com/stagecoach-io/stagecoach/pkg/adapters/redis"
	"github.com/stagecoach-io/stagecoach/pkg/domain"
	"github.com/stagecoach-io/stagecoach/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...redisAdapter.Option) (*redisAdapter.Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return redisAdapter.NewFromClient(client, opts...), mr
}

func TestRedisStoreContract(t *testing.T) {
	store, _ := newTestStore(t)
	ports.RunItemStoreContract(t, store)
}

func TestRedisStoreKeysUsePrefix(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, redisAdapter.WithPrefix("wf:item:"))

	require.NoError(t, store.Save(ctx, &domain.WorkItem{ID: "task-1", Status: "open"}))

	assert.True(t, mr.Exists("wf:item:task-1"))
	assert.True(t, mr.Exists("wf:item:task-1:v"))
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	item := &domain.WorkItem{
		ID:       "task-1",
		Team:     "platform",
		Status:   "in_review",
		Criteria: map[string]bool{"ci_green": true},
		Signoffs: []domain.Signoff{{Stage: "review", Role: "tech-lead", Approver: "tracy"}},
	}
	require.NoError(t, store.Save(ctx, item))
	assert.Equal(t, int64(1), item.Version, "save advances the caller's version")

	loaded, err := store.Load(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "in_review", loaded.Status)
	assert.True(t, loaded.Criteria["ci_green"])
	require.Len(t, loaded.Signoffs, 1)
	assert.Equal(t, "tracy", loaded.Signoffs[0].Approver)
}
