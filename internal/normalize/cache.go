package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	normCacheMaxEntries = 10_000
	normCacheTTL        = 30 * 24 * time.Hour
)

type cacheEntry struct {
	product   *Product
	expiresAt time.Time
}

// Cache is the in-memory normalization cache from spec.md §4.E: an LRU
// bounded at 10,000 entries with a 30-day TTL, keyed by a fingerprint of
// the raw input. github.com/hashicorp/golang-lru/v2 provides the capacity
// bound go-cache (used elsewhere in this service for HTTP-layer caching)
// doesn't have; the TTL on top is a thin wrapper the same shape as
// go-cache's own expiring entries.
type Cache struct {
	mu    sync.Mutex
	inner *lru.Cache[string, cacheEntry]
}

// NewCache constructs the normalization cache.
func NewCache() *Cache {
	inner, err := lru.New[string, cacheEntry](normCacheMaxEntries)
	if err != nil {
		// Only returns an error for a non-positive size, which is a
		// programmer error, not a runtime condition.
		panic(err)
	}
	return &Cache{inner: inner}
}

// Key fingerprints the cacheable portion of a Request: raw title (lowered,
// trimmed), locale, site domain, and brand/model hints.
func Key(req Request) string {
	parts := []string{
		strings.ToLower(strings.TrimSpace(req.RawTitle)),
		strings.ToLower(req.Locale),
		strings.ToLower(req.SiteDomain),
		strings.ToLower(req.BrandHint),
		strings.ToLower(req.ModelHint),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached product for key if present and not expired.
func (c *Cache) Get(key string) (*Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.inner.Get(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.inner.Remove(key)
		return nil, false
	}
	return entry.product, true
}

// Put stores a normalized product under key with the default 30-day TTL.
func (c *Cache) Put(key string, product *Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inner.Add(key, cacheEntry{product: product, expiresAt: time.Now().Add(normCacheTTL)})
}

// Len reports the current number of cached entries (mainly for tests).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Len()
}
