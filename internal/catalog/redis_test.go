package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewRedisCache(client, 2*time.Minute)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return cache, mr, cleanup
}

func TestRedisCache_SetAndGet(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()
	f := Filters{Query: "Apple", Limit: 20}

	require.NoError(t, cache.Set(ctx, f, testProducts()))

	got, err := cache.Get(ctx, Filters{Query: " apple ", Limit: 20})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Apple", got[0].Name)
	assert.True(t, got[1].UnitPrice.Equal(testProducts()[1].UnitPrice))

	ttl := mr.TTL(cacheKey(f))
	assert.True(t, ttl >= 2*time.Minute, "TTL should be at least base TTL")
	assert.True(t, ttl <= 2*time.Minute+30*time.Second, "TTL should be base + max jitter")
}

func TestRedisCache_Miss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	got, err := cache.Get(context.Background(), Filters{Query: "nothing"})
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, got)
}

func TestRedisCache_InvalidJSON(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	f := Filters{Query: "broken"}
	require.NoError(t, mr.Set(cacheKey(f), `[{"id":1,`))

	_, err := cache.Get(context.Background(), f)
	require.ErrorContains(t, err, "unmarshal products failed")
}

func TestRedisCache_InvalidateDropsAllSearches(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, Filters{Query: "a"}, testProducts()))
	require.NoError(t, cache.Set(ctx, Filters{Query: "b"}, testProducts()))

	require.NoError(t, cache.Invalidate(ctx))

	assert.False(t, mr.Exists(cacheKey(Filters{Query: "a"})))
	assert.False(t, mr.Exists(cacheKey(Filters{Query: "b"})))
	assert.False(t, mr.Exists(keysSet))
}

func TestRedisCache_ConnectionError(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	mr.Close()

	_, err := cache.Get(context.Background(), Filters{})
	require.ErrorContains(t, err, "redis get failed")
}
