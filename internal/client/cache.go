package client

import (
	"sync"
	"time"
)

// cacheEntry wraps a cached body with expiry and insertion order.
type cacheEntry struct {
	body      []byte
	expiry    time.Time
	insertIdx int64
}

// responseCache keeps raw GET bodies keyed by request path so repeated
// page renders do not hit the backtest service. Thread-safe.
type responseCache struct {
	mu         sync.RWMutex
	items      map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	nextIdx    int64
	now        func() time.Time
}

func newResponseCache(ttl time.Duration, maxEntries int) *responseCache {
	return &responseCache{
		items:      make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *responseCache) enabled() bool {
	return c != nil && c.ttl > 0 && c.maxEntries > 0
}

func (c *responseCache) get(key string) ([]byte, bool) {
	if !c.enabled() {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.now().After(e.expiry) {
		c.mu.Lock()
		if e2, ok2 := c.items[key]; ok2 && c.now().After(e2.expiry) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.body, true
}

func (c *responseCache) set(key string, body []byte) {
	if !c.enabled() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e := cacheEntry{body: body, expiry: c.now().Add(c.ttl), insertIdx: c.nextIdx}
	c.nextIdx++

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxEntries {
		c.evictOldest()
	}
	c.items[key] = e
}

func (c *responseCache) invalidate(key string) {
	if !c.enabled() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *responseCache) len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// evictOldest removes the entry with the lowest insertIdx. Caller holds mu.
func (c *responseCache) evictOldest() {
	var oldestKey string
	var oldestIdx int64 = -1
	for key, e := range c.items {
		if oldestIdx == -1 || e.insertIdx < oldestIdx {
			oldestIdx = e.insertIdx
			oldestKey = key
		}
	}
	if oldestIdx >= 0 {
		delete(c.items, oldestKey)
	}
}
