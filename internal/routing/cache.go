package routing

import (
	"strings"
	"sync"
	"time"
)

// Cache is a small in-memory cache of road distances keyed by address pair.
type Cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
	now   func() time.Time
}

type cacheEntry struct {
	km float64
	ts time.Time
}

// NewCache creates a cache with the provided TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{store: make(map[string]cacheEntry), ttl: ttl, now: time.Now}
}

func keyFor(pickup, delivery string) string {
	return normalizeAddress(pickup) + "->" + normalizeAddress(delivery)
}

func normalizeAddress(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Get returns cached value and true if present and not expired.
func (c *Cache) Get(pickup, delivery string) (float64, bool) {
	k := keyFor(pickup, delivery)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	if c.now().Sub(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return 0, false
	}
	return e.km, true
}

// Set stores a value in the cache.
func (c *Cache) Set(pickup, delivery string, km float64) {
	k := keyFor(pickup, delivery)
	c.mu.Lock()
	c.store[k] = cacheEntry{km: km, ts: c.now()}
	c.mu.Unlock()
}
