package upstream

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// DefaultCacheEntries bounds the response cache.
const DefaultCacheEntries = 256

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// Cache keeps successful upstream responses for a TTL, keyed by prompt hash.
type Cache struct {
	entries    map[string]cacheEntry
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	mu         sync.Mutex
}

// NewCache creates a response cache. A ttl <= 0 yields a cache that stores nothing.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	return &Cache{
		entries:    make(map[string]cacheEntry),
		now:        time.Now,
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

func cacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached response for prompt if it has not expired.
func (c *Cache) Get(prompt string) (string, bool) {
	if c == nil || c.ttl <= 0 {
		return "", false
	}
	key := cacheKey(prompt)

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return "", false
	}
	return entry.value, true
}

// Put stores value for prompt. Expired entries are swept when the cache is full,
// then the entry closest to expiry is evicted.
func (c *Cache) Put(prompt, value string) {
	if c == nil || c.ttl <= 0 {
		return
	}
	key := cacheKey(prompt)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[key] = cacheEntry{value: value, expiresAt: now.Add(c.ttl)}
}

func (c *Cache) evictLocked(now time.Time) {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			continue
		}
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey, oldest = k, e.expiresAt
		}
	}
	if len(c.entries) >= c.maxEntries && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Len reports the number of stored entries, including expired ones not yet swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
