// Package redis provides Redis-backed adapters: a versioned ItemStore and a
// DistributedLocker for multi-replica deployments.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/stagecoach-io/stagecoach/pkg/domain"

	backend "github.com/redis/go-redis/v9"
)

// casScript performs the optimistic save: the stored version must equal the
// version the caller read (or be absent for a fresh item).
const casScript = `
local stored = redis.call("get", KEYS[2])
if (stored == false and ARGV[2] == "0") or (stored == ARGV[2]) then
	redis.call("set", KEYS[1], ARGV[1])
	redis.call("set", KEYS[2], ARGV[3])
	if tonumber(ARGV[4]) > 0 then
		redis.call("pexpire", KEYS[1], ARGV[4])
		redis.call("pexpire", KEYS[2], ARGV[4])
	end
	redis.call("zadd", KEYS[3], ARGV[5], ARGV[6])
	return 1
end
return 0
`

// Store implements ports.ItemStore using Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the store.
type Option func(*Store)

// WithTTL sets the expiration for items.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithPrefix sets the key prefix for items.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// New creates a Redis item store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a Redis item store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "stagecoach:item:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(id string) string        { return s.prefix + id }
func (s *Store) versionKey(id string) string { return s.prefix + id + ":v" }
func (s *Store) indexKey() string            { return s.prefix + "index" }

// Save persists the item if the stored version still matches item.Version.
func (s *Store) Save(ctx context.Context, item *domain.WorkItem) error {
	next := item.Version + 1

	saved := item.Clone()
	saved.Version = next
	data, err := json.Marshal(saved)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01, far enough for an index ceiling
	}

	ok, err := s.client.Eval(ctx, casScript,
		[]string{s.key(item.ID), s.versionKey(item.ID), s.indexKey()},
		string(data),
		strconv.FormatInt(item.Version, 10),
		strconv.FormatInt(next, 10),
		strconv.FormatInt(s.ttl.Milliseconds(), 10),
		score,
		item.ID,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	if ok != 1 {
		return fmt.Errorf("item %q read at v%d: %w", item.ID, item.Version, domain.ErrVersionMismatch)
	}

	item.Version = next
	return nil
}

// Load retrieves the item from Redis.
func (s *Store) Load(ctx context.Context, id string) (*domain.WorkItem, error) {
	val, err := s.client.Get(ctx, s.key(id)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, fmt.Errorf("item %q: %w", id, domain.ErrItemNotFound)
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var item domain.WorkItem
	if err := json.Unmarshal([]byte(val), &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return &item, nil
}

// Delete removes the item and its index entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(id), s.versionKey(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns item ids via the index ZSET, pruning expired entries lazily.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired items: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return ids, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
