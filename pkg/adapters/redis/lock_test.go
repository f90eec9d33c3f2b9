package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	redisAdapter "github.com/stagecoach-io/stagecoach/pkg/adapters/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*redisAdapter.Locker, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return redisAdapter.NewLocker(client, "test:"), mr
}

func TestLockerLockUnlock(t *testing.T) {
	ctx := context.Background()
	locker, mr := newTestLocker(t)

	unlock, err := locker.Lock(ctx, "task-1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:task-1"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:task-1"))
}

func TestLockerContention(t *testing.T) {
	locker, _ := newTestLocker(t)

	unlock, err := locker.Lock(context.Background(), "task-1", 5*time.Second)
	require.NoError(t, err)

	// Second holder times out while the first one holds the lock.
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "task-1", 5*time.Second)
	assert.ErrorIs(t, err, redisAdapter.ErrLockAcquire)

	require.NoError(t, unlock(context.Background()))

	unlock2, err := locker.Lock(context.Background(), "task-1", 5*time.Second)
	require.NoError(t, err)
	_ = unlock2(context.Background())
}

func TestUnlockOnlyReleasesOwnLock(t *testing.T) {
	ctx := context.Background()
	locker, mr := newTestLocker(t)

	unlock, err := locker.Lock(ctx, "task-1", 50*time.Millisecond)
	require.NoError(t, err)

	// Simulate TTL expiry followed by another holder acquiring the lock.
	mr.FastForward(100 * time.Millisecond)
	require.NoError(t, mr.Set("test:lock:task-1", "someone-else"))

	require.NoError(t, unlock(ctx))
	assert.True(t, mr.Exists("test:lock:task-1"), "stale holder must not delete the new lock")
}
