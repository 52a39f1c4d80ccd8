package enrich

import (
	"context"
	"errors"
	"sync"

	"github.com/jmehdipour/leadsync/internal/model"
	"github.com/redis/go-redis/v9"
)

// Cache maps a customer identifier to its email hash. Only successful
// resolutions are stored, so a miss is always retried on the next run.
type Cache interface {
	Get(ctx context.Context, id string) (string, bool, error)
	Put(ctx context.Context, id, hash string) error
}

// MemoryCache lives for one pull run and is seeded from the prior snapshot.
type MemoryCache struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string]string)}
}

// Seed loads every record that already carries an email hash.
func (c *MemoryCache) Seed(records []model.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range records {
		if r.Email != nil && *r.Email != "" {
			c.m[r.CustomerID] = *r.Email
		}
	}
}

func (c *MemoryCache) Get(_ context.Context, id string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.m[id]
	return h, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, id, hash string) error {
	c.mu.Lock()
	c.m[id] = hash
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// RedisCache keeps the mapping in one Redis hash, shared across runs and
// independent of the snapshot store.
type RedisCache struct {
	rdb *redis.Client
	key string
}

func NewRedisCache(rdb *redis.Client, key string) *RedisCache {
	if key == "" {
		key = "leadsync:email-hash"
	}
	return &RedisCache{rdb: rdb, key: key}
}

func (c *RedisCache) Get(ctx context.Context, id string) (string, bool, error) {
	h, err := c.rdb.HGet(ctx, c.key, id).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return h, true, nil
}

func (c *RedisCache) Put(ctx context.Context, id, hash string) error {
	return c.rdb.HSet(ctx, c.key, id, hash).Err()
}

// Layered reads through its caches in order and writes to all of them. A
// hit in a later layer is copied into the earlier ones.
type Layered []Cache

func (l Layered) Get(ctx context.Context, id string) (string, bool, error) {
	var firstErr error
	for i, c := range l {
		h, ok, err := c.Get(ctx, id)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			for _, prev := range l[:i] {
				_ = prev.Put(ctx, id, h)
			}
			return h, true, nil
		}
	}
	return "", false, firstErr
}

func (l Layered) Put(ctx context.Context, id, hash string) error {
	var errs []error
	for _, c := range l {
		if err := c.Put(ctx, id, hash); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
