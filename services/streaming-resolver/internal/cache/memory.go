package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is a bounded LRU. The LRU evicts at maxTTL; shorter per-entry
// TTLs are enforced on read.
type MemoryCache struct {
	lru *expirable.LRU[string, memEntry]
	now func() time.Time
}

func NewMemoryCache(size int, maxTTL time.Duration) *MemoryCache {
	if size <= 0 {
		size = 4096
	}
	if maxTTL <= 0 {
		maxTTL = 24 * time.Hour
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, memEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string, dest any) (bool, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return false, nil
	}
	if c.now().After(e.expiresAt) {
		c.lru.Remove(key)
		return false, nil
	}
	if err := json.Unmarshal(e.data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.lru.Add(key, memEntry{data: b, expiresAt: c.now().Add(ttl)})
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.lru.Remove(k)
	}
	return nil
}

func (c *MemoryCache) Purge(context.Context) error {
	c.lru.Purge()
	return nil
}

func (c *MemoryCache) Len() int { return c.lru.Len() }
