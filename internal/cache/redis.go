package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// KV is the subset of the go-redis client the cache needs
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCache shares listing links between processes through Redis
type RedisCache struct {
	client     KV
	prefix     string
	defaultTTL time.Duration
}

// NewRedisCache creates a RedisCache. Keys are stored under prefix.
func NewRedisCache(client KV, prefix string, defaultTTL time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "shopscrape:links:"
	}
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &RedisCache{client: client, prefix: prefix, defaultTTL: defaultTTL}
}

// Get treats any Redis failure as a miss
func (rc *RedisCache) Get(ctx context.Context, key string) ([]string, bool) {
	raw, err := rc.client.Get(ctx, rc.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("Listing cache lookup failed")
		}
		return nil, false
	}

	var links []string
	if err := json.Unmarshal(raw, &links); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Discarding corrupt listing cache entry")
		return nil, false
	}
	return links, true
}

func (rc *RedisCache) Set(ctx context.Context, key string, links []string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = rc.defaultTTL
	}
	payload, err := json.Marshal(links)
	if err != nil {
		return fmt.Errorf("failed to marshal links: %w", err)
	}
	if err := rc.client.Set(ctx, rc.prefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache listing: %w", err)
	}
	return nil
}

func (rc *RedisCache) Delete(ctx context.Context, key string) error {
	return rc.client.Del(ctx, rc.prefix+key).Err()
}

// Close is a no-op, the client is owned by the caller
func (rc *RedisCache) Close() {}
