package worker

import (
	"context"
	"sync"
	"time"

	pkgredis "github.com/dawei41468/LOSMAX/pkg/redis"
)

// Deduplicator claims a key once; later claims within ttl report false.
// Release gives a claim back so the key can be claimed again.
type Deduplicator interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisDeduplicator claims keys with SETNX so several instances share one claim set
type RedisDeduplicator struct {
	client *pkgredis.Client
}

// NewRedisDeduplicator creates a RedisDeduplicator
func NewRedisDeduplicator(client *pkgredis.Client) *RedisDeduplicator {
	return &RedisDeduplicator{client: client}
}

// Claim implements Deduplicator
func (d *RedisDeduplicator) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return d.client.SetNX(ctx, key, 1, ttl).Result()
}

// Release implements Deduplicator
func (d *RedisDeduplicator) Release(ctx context.Context, key string) error {
	return d.client.Del(ctx, key).Err()
}

// MemoryDeduplicator is the single-instance fallback used when Redis is disabled
type MemoryDeduplicator struct {
	mu      sync.Mutex
	claimed map[string]time.Time
	now     func() time.Time
}

// NewMemoryDeduplicator creates a MemoryDeduplicator
func NewMemoryDeduplicator() *MemoryDeduplicator {
	return &MemoryDeduplicator{claimed: make(map[string]time.Time), now: time.Now}
}

// Claim implements Deduplicator
func (d *MemoryDeduplicator) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, exp := range d.claimed {
		if !exp.After(now) {
			delete(d.claimed, k)
		}
	}
	if _, ok := d.claimed[key]; ok {
		return false, nil
	}
	d.claimed[key] = now.Add(ttl)
	return true, nil
}

// Release implements Deduplicator
func (d *MemoryDeduplicator) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.claimed, key)
	return nil
}
