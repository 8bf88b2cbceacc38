// Package redis shares the facet vocabulary between service replicas.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.pilab.hu/stats/facets"
)

// Cache stores the vocabulary of an upstream provider in a Redis list so
// every replica sees the same facets until the key expires.
type Cache struct {
	client   redis.UniversalClient
	upstream facets.Provider
	prefix   string
	ttl      time.Duration
}

// NewCache creates a new [Cache] instance. A ttl <= 0 keeps the shared
// vocabulary until it is invalidated.
func NewCache(client redis.UniversalClient, upstream facets.Provider, prefix string, ttl time.Duration) *Cache {
	return &Cache{
		client:   client,
		upstream: upstream,
		prefix:   prefix,
		ttl:      ttl,
	}
}

func (c *Cache) redisKey() string {
	return fmt.Sprintf("%s:facets", c.prefix)
}

// Facets returns the cached vocabulary, refilling it from upstream on a
// miss. Redis failures fall through to upstream.
func (c *Cache) Facets(ctx context.Context) ([]string, error) {
	key := c.redisKey()

	cached, err := c.client.LRange(ctx, key, 0, -1).Result()
	switch {
	case err != nil:
		log.Warn().Err(err).Str("key", key).Msg("facet cache read failed")
	case len(cached) > 0:
		return cached, nil
	}

	vocabulary, err := c.upstream.Facets(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.store(ctx, key, vocabulary); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("facet cache write failed")
	}

	return vocabulary, nil
}

func (c *Cache) store(ctx context.Context, key string, vocabulary []string) error {
	values := make([]any, len(vocabulary))
	for i, v := range vocabulary {
		values[i] = v
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.RPush(ctx, key, values...)
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store facets in Redis: %w", err)
	}
	return nil
}

// Invalidate removes the shared vocabulary.
func (c *Cache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.redisKey()).Err()
}
