package cache

import (
	"context"

	"github.com/valkey-io/valkey-go"

	"github.com/polygonid/academic-bridge/internal/config"
	"github.com/polygonid/academic-bridge/internal/log"
	"github.com/polygonid/academic-bridge/internal/redis"
	"github.com/polygonid/academic-bridge/pkg/cache"
)

// NewCacheClient creates a new cache client based on the configuration
func NewCacheClient(ctx context.Context, cfg config.Configuration) (cache.Cache, error) {
	switch cfg.Cache.Provider {
	case config.CacheProviderRedis:
		rdb, err := redis.Open(ctx, cfg.Cache.Url)
		if err != nil {
			log.Error(ctx, "cannot connect to redis", "err", err, "host", cfg.Cache.Url)
			return nil, err
		}
		return cache.NewRedisCache(rdb), nil
	case config.CacheProviderValKey:
		client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{cfg.Cache.Url}})
		if err != nil {
			log.Error(ctx, "cannot connect to valkey", "err", err, "host", cfg.Cache.Url)
			return nil, err
		}
		return cache.NewValKeyCache(client), nil
	case config.CacheProviderNone:
		return &NullCache{}, nil
	default:
		return cache.NewMemoryCache(), nil
	}
}
