package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Backend string // "memory" or "redis"
	Prefix  string
	TTL     time.Duration
}

// NewEntryStore builds the entry store for the configured backend. The
// redis backend layers the shared store behind the in-process map so
// warm keys never leave the process.
func NewEntryStore(cfg Config, redisClient *redis.Client) EntryStore {
	memory := NewMemoryEntryStore()
	if cfg.Backend != "redis" || redisClient == nil {
		return memory
	}
	return &tieredEntryStore{
		local:  memory,
		shared: NewRedisEntryStore(redisClient, RedisConfig{Prefix: cfg.Prefix, TTL: cfg.TTL}),
	}
}

// tieredEntryStore reads through local then shared, populating local on
// a shared hit and writing both on Set. Shared-tier errors are
// returned alongside the local result so callers can log them while
// still treating the lookup as a miss.
type tieredEntryStore struct {
	local  *MemoryEntryStore
	shared *RedisEntryStore
}

func (t *tieredEntryStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	if e, ok, _ := t.local.Get(ctx, key); ok {
		return e, true, nil
	}
	e, ok, err := t.shared.Get(ctx, key)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	_ = t.local.Set(ctx, key, e)
	return e, true, nil
}

func (t *tieredEntryStore) Set(ctx context.Context, key string, e Entry) error {
	_ = t.local.Set(ctx, key, e)
	return t.shared.Set(ctx, key, e)
}
