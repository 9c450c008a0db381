package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/redis/go-redis/v9"
)

const keysSet = "catalog:keys"

func NewRedisCache(client *redis.Client, baseTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: baseTTL,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisCache) Get(ctx context.Context, f Filters) ([]domain.ProductSnapshot, error) {
	data, err := r.client.Get(ctx, cacheKey(f)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var products []domain.ProductSnapshot
	if err2 := json.Unmarshal(data, &products); err2 != nil {
		return nil, fmt.Errorf("unmarshal products failed: %w", err2)
	}
	return products, nil
}

func (r RedisCache) Set(ctx context.Context, f Filters, products []domain.ProductSnapshot) error {
	key := cacheKey(f)
	payload, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("marshal products failed: %w", err)
	}

	jitter := time.Duration(rand.Int63n(int64(r.baseTTL/4) + 1))
	ttl := r.baseTTL + jitter

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, payload, ttl)
	pipe.SAdd(ctx, keysSet, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate drops every cached search; called after a sale changes stock.
func (r RedisCache) Invalidate(ctx context.Context) error {
	keys, err := r.client.SMembers(ctx, keysSet).Result()
	if err != nil {
		return fmt.Errorf("redis list keys failed: %w", err)
	}
	keys = append(keys, keysSet)
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(f Filters) string {
	return fmt.Sprintf("catalog:%s", f.Key())
}
