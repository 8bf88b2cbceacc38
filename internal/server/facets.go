package server

import (
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.pilab.hu/stats/config"
	"go.pilab.hu/stats/facets"
	facetredis "go.pilab.hu/stats/facets/redis"
)

const redisFacetPrefix = "stats"

// NewFacetProvider builds the vocabulary source described by cfg. A
// catalog URL wins over a file, which wins over an explicit list; without
// any of them the built-in defaults are used. Remote and file sources are
// cached in memory for FACETS_TTL and, when REDIS_ADDR is set, shared
// through Redis as well. A FACETS_TTL of zero disables both caches.
func NewFacetProvider(cfg *config.ServerConfig, rdb goredis.UniversalClient) facets.Provider {
	var upstream facets.Provider
	switch {
	case cfg.FacetsURL != "":
		upstream = facets.HTTP{
			URL:     cfg.FacetsURL,
			Flavour: cfg.FacetsFlavour,
			Client:  &http.Client{Timeout: 10 * time.Second},
		}
	case cfg.FacetsFile != "":
		upstream = facets.File{Path: cfg.FacetsFile}
	case len(cfg.Facets) > 0:
		return facets.Static(cfg.Facets)
	default:
		return facets.Static(facets.DefaultFacets)
	}

	if cfg.FacetsTTL <= 0 {
		return upstream
	}
	if rdb != nil {
		upstream = facetredis.NewCache(rdb, upstream, redisFacetPrefix, cfg.FacetsTTL)
	}
	return facets.NewCached(upstream, cfg.FacetsTTL)
}

// NewRedisClient returns nil when no Redis address is configured.
func NewRedisClient(cfg *config.ServerConfig) goredis.UniversalClient {
	if cfg.RedisAddr == "" {
		return nil
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}
