package pipeline

import (
	"sync"
	"time"
)

const (
	// DefaultResultTTL matches the session cookie lifetime.
	DefaultResultTTL = 7 * 24 * time.Hour
	// DefaultMaxResults bounds the cache when clients do not keep their session cookie.
	DefaultMaxResults = 1000
)

type cacheEntry struct {
	outcome  *Outcome
	storedAt time.Time
}

// ResultCache holds the latest outcome per session so that redisplaying a result
// does not call the model again. Regenerating invalidates the entry explicitly.
// Entries expire after the TTL and the oldest entry is evicted once the cache is full.
type ResultCache struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewResultCache uses DefaultResultTTL and DefaultMaxResults for non-positive arguments.
func NewResultCache(ttl time.Duration, maxEntries int) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxResults
	}
	return &ResultCache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *ResultCache) Get(sessionID string) (*Outcome, bool) {
	c.mu.RLock()
	e, ok := c.entries[sessionID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.expired(e) {
		c.mu.Lock()
		if cur, ok := c.entries[sessionID]; ok && c.expired(cur) {
			delete(c.entries, sessionID)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.outcome, true
}

// Put replaces whatever the session had before.
func (c *ResultCache) Put(sessionID string, o *Outcome) {
	if sessionID == "" || o == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[sessionID]; !exists && len(c.entries) >= c.maxEntries {
		c.pruneLocked()
	}
	c.entries[sessionID] = cacheEntry{outcome: o, storedAt: c.now()}
}

// Invalidate drops the session's entry and returns it, if there was one and it had not expired.
func (c *ResultCache) Invalidate(sessionID string) (*Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[sessionID]
	delete(c.entries, sessionID)
	if !ok || c.expired(e) {
		return nil, false
	}
	return e.outcome, true
}

// Len is the number of sessions with a cached result, expired entries included
// until they are pruned.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *ResultCache) expired(e cacheEntry) bool {
	return c.now().Sub(e.storedAt) >= c.ttl
}

// pruneLocked drops expired entries, then the oldest one if the cache is still full.
func (c *ResultCache) pruneLocked() {
	var (
		oldestID string
		oldestAt time.Time
	)
	for id, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, id)
			continue
		}
		if oldestID == "" || e.storedAt.Before(oldestAt) {
			oldestID, oldestAt = id, e.storedAt
		}
	}
	if len(c.entries) >= c.maxEntries && oldestID != "" {
		delete(c.entries, oldestID)
	}
}
