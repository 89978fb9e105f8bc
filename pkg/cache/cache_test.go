package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	SchemaID string `json:"schemaId"`
	Names    []string
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.Set(ctx, "k", entry{SchemaID: "s1", Names: []string{"a"}}, ForEver))
	assert.True(t, c.Exists(ctx, "k"))

	var got entry
	require.True(t, c.Get(ctx, "k", &got))
	assert.Equal(t, "s1", got.SchemaID)

	var wrongType string
	assert.False(t, c.Get(ctx, "k", &wrongType))

	require.NoError(t, c.Set(ctx, "p", &entry{SchemaID: "s2"}, time.Minute))
	var fromPtr entry
	require.True(t, c.Get(ctx, "p", &fromPtr))
	assert.Equal(t, "s2", fromPtr.SchemaID)

	require.NoError(t, c.Delete(ctx, "k"))
	assert.False(t, c.Exists(ctx, "k"))
	assert.False(t, c.Get(ctx, "k", &got))
	assert.NoError(t, c.Ping(ctx))
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	c := NewRedisCache(client)

	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Set(ctx, "k", entry{SchemaID: "s1", Names: []string{"a", "b"}}, time.Minute))
	assert.True(t, c.Exists(ctx, "k"))

	var got entry
	require.True(t, c.Get(ctx, "k", &got))
	assert.Equal(t, entry{SchemaID: "s1", Names: []string{"a", "b"}}, got)

	var missing entry
	assert.False(t, c.Get(ctx, "nope", &missing))

	require.NoError(t, c.Delete(ctx, "k"))
	assert.False(t, c.Exists(ctx, "k"))
}
