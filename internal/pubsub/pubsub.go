package pubsub

import (
	"context"
	"fmt"

	"github.com/valkey-io/valkey-go"

	"github.com/polygonid/academic-bridge/internal/config"
	"github.com/polygonid/academic-bridge/internal/log"
	"github.com/polygonid/academic-bridge/internal/redis"
	"github.com/polygonid/academic-bridge/pkg/pubsub"
)

// NewPubSub creates a new pubsub client based on the cache configuration
func NewPubSub(ctx context.Context, cfg config.Configuration) (pubsub.Client, error) {
	switch cfg.Cache.Provider {
	case config.CacheProviderRedis:
		rdb, err := redis.Open(ctx, cfg.Cache.Url)
		if err != nil {
			log.Error(ctx, "cannot connect to redis", "err", err, "host", cfg.Cache.Url)
			return nil, err
		}
		return pubsub.NewRedis(rdb), nil
	case config.CacheProviderValKey:
		client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{cfg.Cache.Url}})
		if err != nil {
			log.Error(ctx, "cannot connect to valkey", "err", err, "host", cfg.Cache.Url)
			return nil, err
		}
		return pubsub.NewValKeyClient(client), nil
	default:
		return nil, fmt.Errorf("pubsub is not available with cache provider <%s>", cfg.Cache.Provider)
	}
}
