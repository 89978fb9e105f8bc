package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

type valKeyCache struct {
	client valkey.Client
}

// NewValKeyCache returns a new cache based on Valkey
func NewValKeyCache(client valkey.Client) Cache {
	return &valKeyCache{client: client}
}

func (v valKeyCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	val, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl == ForEver {
		return v.client.Do(ctx, v.client.B().Set().Key(key).Value(string(val)).Build()).Error()
	}
	return v.client.Do(ctx, v.client.B().Set().Key(key).Value(string(val)).Px(ttl).Build()).Error()
}

func (v valKeyCache) Get(ctx context.Context, key string, value any) bool {
	result := v.client.Do(ctx, v.client.B().Get().Key(key).Build())
	if err := result.Error(); err != nil {
		return false
	}
	raw, err := result.AsBytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, value) == nil
}

func (v valKeyCache) Exists(ctx context.Context, key string) bool {
	n, err := v.client.Do(ctx, v.client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false
	}
	return n == 1
}

func (v valKeyCache) Delete(ctx context.Context, key string) error {
	err := v.client.Do(ctx, v.client.B().Del().Key(key).Build()).Error()
	if valkey.IsValkeyNil(err) {
		return nil
	}
	return err
}

func (v valKeyCache) Ping(ctx context.Context) error {
	err := v.client.Do(ctx, v.client.B().Ping().Build()).Error()
	if err != nil {
		return fmt.Errorf("valkey ping: %w", err)
	}
	return nil
}
