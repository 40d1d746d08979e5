package normalize

import "context"

// CachedProvider wraps any Provider with the normalization cache, so the
// orchestrator can normalize without knowing whether the result came from
// cache, the heuristic, or the AI-backed composite.
type CachedProvider struct {
	inner Provider
	cache *Cache
}

// NewCachedProvider builds the cache-fronted normalizer used in production.
func NewCachedProvider(inner Provider, cache *Cache) *CachedProvider {
	return &CachedProvider{inner: inner, cache: cache}
}

// Normalize checks the cache first; on a miss it delegates to inner and
// stores the result before returning it.
func (c *CachedProvider) Normalize(ctx context.Context, req Request) (*Product, error) {
	key := Key(req)
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	product, err := c.inner.Normalize(ctx, req)
	if err != nil {
		return nil, err
	}

	c.cache.Put(key, product)
	return product, nil
}
