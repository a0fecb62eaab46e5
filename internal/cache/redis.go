// Package cache stores cart mirrors in Redis so every API instance renders
// the same projection.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"storefront/internal/domain"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss matches domain.ErrNotFound so callers can treat both stores alike.
var ErrCacheMiss = fmt.Errorf("cache miss: %w", domain.ErrNotFound)

const defaultTTL = 30 * time.Minute

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: defaultTTL,
	}
}

func (r *RedisCache) Get(ctx context.Context, cartID string) (*domain.LocalCartMirror, error) {
	data, err := r.client.Get(ctx, cacheKey(cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var m domain.LocalCartMirror
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal mirror failed: %w", err)
	}
	return &m, nil
}

func (r *RedisCache) Put(ctx context.Context, m domain.LocalCartMirror) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal mirror failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	if err := r.client.Set(ctx, cacheKey(m.CartID), data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, cartID string) error {
	if err := r.client.Del(ctx, cacheKey(cartID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable; used by readiness checks.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func cacheKey(cartID string) string {
	return fmt.Sprintf("mirror:%s", cartID)
}
