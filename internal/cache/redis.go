package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisEntryStore shares cache entries across nodes that point at the
// same object store, so only one node per key pays the Exists probe.
// Entries are serialized as JSON under a prefixed key.
type RedisEntryStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type RedisConfig struct {
	Prefix string
	TTL    time.Duration // 0 means no expiry
}

func NewRedisEntryStore(client *redis.Client, cfg RedisConfig) *RedisEntryStore {
	return &RedisEntryStore{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}
}

func (s *RedisEntryStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

// Get retrieves an entry. On Redis error it returns (zero, false, err)
// so the caller can log and treat it as a miss.
func (s *RedisEntryStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, fmt.Errorf("context error: %w", err)
	}
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get failed: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, fmt.Errorf("redis entry decode failed: %w", err)
	}
	return e, true, nil
}

func (s *RedisEntryStore) Set(ctx context.Context, key string, e Entry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("redis entry encode failed: %w", err)
	}
	if err := s.client.Set(ctx, s.key(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Ping checks if the Redis connection is healthy.
func (s *RedisEntryStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
