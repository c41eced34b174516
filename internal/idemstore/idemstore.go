// Package idemstore provides the pluggable key->bool idempotency store used
// by the daily alert scheduler (C8). Production wiring uses Redis SETNX for
// true cross-process atomicity; tests and single-process deployments use an
// in-memory store with the same check-and-set contract.
package idemstore

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store marks idempotency keys as consumed, at-most-once.
type Store interface {
	// MarkIfAbsent atomically checks whether key has already been marked;
	// if not, it marks it (with the given TTL) and returns true ("this
	// call did the marking"). If the key was already present it returns
	// false without side effects.
	MarkIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// InMemoryStore is a process-local Store guarded by a mutex, matching the
// "test/in-process mode uses a set with check-and-set semantics" line in
// the concurrency model.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewInMemoryStore creates an empty in-memory idempotency store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]time.Time)}
}

// MarkIfAbsent implements Store.
func (s *InMemoryStore) MarkIfAbsent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if expiry, ok := s.entries[key]; ok && now.Before(expiry) {
		return false, nil
	}
	s.entries[key] = now.Add(ttl)
	return true, nil
}

// RedisStore is the durable, multi-process-safe Store backed by Redis
// SETNX, matching the spec's "production MUST replace with a durable store"
// requirement and the shared ALERT idempotency TTL (>= 48h).
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wires a Store on top of an existing redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// MarkIfAbsent implements Store using SETNX semantics (redis' SetNX already
// atomically checks-and-sets).
func (s *RedisStore) MarkIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, "1", ttl).Result()
}

// NewRedisClient builds a *redis.Client from a REDIS_URL connection string.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}
