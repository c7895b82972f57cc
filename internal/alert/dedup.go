package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dedup records which alert keys have already fired
type Dedup interface {
	// Claim marks key as sent for ttl. It reports false if key was already claimed.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release forgets key so a later attempt can fire again
	Release(ctx context.Context, key string) error
}

// MemoryDedup is a process-local Dedup
type MemoryDedup struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

// NewMemoryDedup creates an in-memory de-duplication store
func NewMemoryDedup() *MemoryDedup {
	return &MemoryDedup{
		keys: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (d *MemoryDedup) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if exp, ok := d.keys[key]; ok && now.Before(exp) {
		return false, nil
	}

	// Expired keys are swept on write
	for k, exp := range d.keys {
		if !now.Before(exp) {
			delete(d.keys, k)
		}
	}

	d.keys[key] = now.Add(ttl)
	return true, nil
}

func (d *MemoryDedup) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.keys, key)
	return nil
}

// RedisDedup shares alert de-duplication across processes
type RedisDedup struct {
	client *redis.Client
	prefix string
}

// NewRedisDedup creates a Redis-backed de-duplication store
func NewRedisDedup(client *redis.Client) *RedisDedup {
	return &RedisDedup{
		client: client,
		prefix: "sentinel:alert:",
	}
}

func (d *RedisDedup) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+key, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim alert key: %w", err)
	}
	return ok, nil
}

func (d *RedisDedup) Release(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, d.prefix+key).Err(); err != nil {
		return fmt.Errorf("release alert key: %w", err)
	}
	return nil
}
