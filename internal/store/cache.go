package store

import (
	"context"
	"sync"
	"time"
)

// DefaultCacheTTL is how long a lookup result is served without consulting
// the store again.
const DefaultCacheTTL = 5 * time.Minute

// Cache is an injected lookup cache over a Store with per-entry TTL and an
// explicit freshness timestamp. Absent records are cached too, so repeated
// lookups of an unknown key during an import hit the store once.
type Cache struct {
	mu    sync.Mutex
	store Store
	ttl   time.Duration
	now   func() time.Time

	entries map[string]cacheEntry
}

type cacheEntry struct {
	rec *Record
	at  time.Time
}

// NewCache wraps a store. ttl <= 0 uses the default.
func NewCache(s Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{store: s, ttl: ttl, now: time.Now, entries: make(map[string]cacheEntry)}
}

// ByKey resolves a natural key through the cache.
func (c *Cache) ByKey(ctx context.Context, key string) (*Record, error) {
	return c.get(ctx, "key\x00"+key, func() (*Record, error) {
		return c.store.LookupByKey(ctx, key)
	})
}

// ByName resolves a display name through the cache.
func (c *Cache) ByName(ctx context.Context, name string) (*Record, error) {
	return c.get(ctx, "name\x00"+name, func() (*Record, error) {
		return c.store.LookupByName(ctx, name)
	})
}

func (c *Cache) get(ctx context.Context, k string, fetch func() (*Record, error)) (*Record, error) {
	c.mu.Lock()
	if e, ok := c.entries[k]; ok && c.now().Sub(e.at) < c.ttl {
		c.mu.Unlock()
		return e.rec, nil
	}
	c.mu.Unlock()

	rec, err := fetch()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[k] = cacheEntry{rec: rec, at: c.now()}
	c.mu.Unlock()
	return rec, nil
}

// InvalidateKey drops the cached entry for a natural key.
func (c *Cache) InvalidateKey(key string) {
	c.mu.Lock()
	delete(c.entries, "key\x00"+key)
	c.mu.Unlock()
}

// InvalidateAll drops every cached entry. Called after a save, since the
// store's view of the world just changed.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Refresh re-fetches a natural key, bypassing the TTL.
func (c *Cache) Refresh(ctx context.Context, key string) (*Record, error) {
	c.InvalidateKey(key)
	return c.ByKey(ctx, key)
}

// FreshAt reports when the cached entry for a natural key was fetched, and
// false when the key is not cached.
func (c *Cache) FreshAt(key string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries["key\x00"+key]
	return e.at, ok
}
