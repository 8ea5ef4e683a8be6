package resilience

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	data    string
	storeAt time.Time
}

// ResponseCache keeps recent provider answers for a fixed TTL. The oldest
// entries are evicted once size entries are held.
type ResponseCache struct {
	ttl     time.Duration
	now     func() time.Time
	entries *lru.Cache
}

// NewResponseCache creates a cache. A non-positive ttl disables caching.
func NewResponseCache(size int, ttl time.Duration) *ResponseCache {
	if size <= 0 {
		size = 1000
	}
	entries, err := lru.New(size)
	if err != nil {
		panic(err)
	}
	return &ResponseCache{ttl: ttl, now: time.Now, entries: entries}
}

// CacheKey hashes the parts that determine a provider's answer.
func CacheKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a live entry for key. Expired entries are dropped.
func (c *ResponseCache) Get(key string) (string, bool) {
	if c.ttl <= 0 {
		return "", false
	}
	v, ok := c.entries.Get(key)
	if !ok {
		return "", false
	}
	e := v.(cacheEntry)
	if c.now().Sub(e.storeAt) >= c.ttl {
		c.entries.Remove(key)
		return "", false
	}
	return e.data, true
}

// Set stores data under key.
func (c *ResponseCache) Set(key, data string) {
	if c.ttl <= 0 {
		return
	}
	c.entries.Add(key, cacheEntry{data: data, storeAt: c.now()})
}

// Len reports how many entries are held, including expired ones not yet dropped.
func (c *ResponseCache) Len() int {
	return c.entries.Len()
}
