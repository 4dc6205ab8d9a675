package judge

import (
	"sync"
	"time"
)

const (
	// DefaultCacheTTL is how long a cached judgment stays valid.
	DefaultCacheTTL = time.Hour

	// DefaultCacheSize is the entry cap before oldest-first eviction.
	DefaultCacheSize = 1000
)

type cacheEntry struct {
	result   Result
	storedAt time.Time
}

// Cache memoizes judgments keyed by submission, target character, and
// context fingerprint. Entries are immutable once stored, so a concurrent
// populate of the same key is last-writer-wins and harmless. Safe for
// concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	max     int
	hits    uint64
	misses  uint64

	now func() time.Time
}

// NewCache creates a cache with the given TTL and entry cap. Non-positive
// arguments select the defaults.
func NewCache(ttl time.Duration, max int) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if max <= 0 {
		max = DefaultCacheSize
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		max:     max,
		now:     time.Now,
	}
}

// Get returns the cached judgment for key, if present and unexpired.
func (c *Cache) Get(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		if ok {
			delete(c.entries, key)
		}
		c.misses++
		return nil, false
	}
	c.hits++
	r := e.result
	return &r, true
}

// Put stores a judgment, evicting the oldest entry when the cap is reached.
func (c *Cache) Put(key string, r *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.max {
		c.evictOldestLocked()
	}
	c.entries[key] = cacheEntry{result: *r, storedAt: c.now()}
}

func (c *Cache) evictOldestLocked() {
	var (
		oldestKey string
		oldestAt  time.Time
	)
	for k, e := range c.entries {
		if oldestKey == "" || e.storedAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.storedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Stats returns the lifetime hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Flush drops every entry. Hit and miss counters are kept.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
