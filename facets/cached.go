package facets

import (
	"context"
	"slices"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const vocabularyKey = "vocabulary"

// Cached keeps the upstream vocabulary in memory for a limited time, so
// it is revalidated periodically without a lookup per request.
type Cached struct {
	upstream Provider
	ttl      time.Duration
	cache    *ttlcache.Cache[string, []string]
}

// NewCached wraps upstream with an in-memory TTL cache.
func NewCached(upstream Provider, ttl time.Duration) *Cached {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, []string](ttl),
		ttlcache.WithDisableTouchOnHit[string, []string](),
	)
	return &Cached{upstream: upstream, ttl: ttl, cache: cache}
}

func (c *Cached) Facets(ctx context.Context) ([]string, error) {
	if item := c.cache.Get(vocabularyKey); item != nil {
		return slices.Clone(item.Value()), nil
	}

	facets, err := c.upstream.Facets(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(vocabularyKey, facets, ttlcache.DefaultTTL)
	return slices.Clone(facets), nil
}

// Invalidate drops the cached vocabulary.
func (c *Cached) Invalidate() {
	c.cache.DeleteAll()
}
