package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

// cacheEntry represents a cached oracle response.
type cacheEntry struct {
	expiry   time.Time
	response Response
}

// responseCache provides thread-safe caching of tool-free oracle responses.
type responseCache struct {
	entries map[string]cacheEntry
	now     func() time.Time
	ttl     time.Duration
	mu      sync.RWMutex
}

// newResponseCache creates a cache with the specified TTL.
func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// cacheKey hashes a request. Requests that carry tools are not cacheable
// because their answers depend on live store reads.
func cacheKey(req Request) (string, bool) {
	if len(req.Tools) > 0 {
		return "", false
	}
	encoded, err := json.Marshal(req)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), true
}

// get retrieves a response if it exists and hasn't expired.
func (c *responseCache) get(key string) (Response, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || c.now().After(entry.expiry) {
		return Response{}, false
	}
	return entry.response, true
}

// set stores a response and drops expired entries.
func (c *responseCache) set(key string, response Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, entry := range c.entries {
		if now.After(entry.expiry) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{response: response, expiry: now.Add(c.ttl)}
}

// size returns the number of entries in the cache.
func (c *responseCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
