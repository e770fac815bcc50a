package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/tweetsweep/internal/purge/domain"
)

const redisKeyPrefix = "tweetsweep:cache:"

// DefaultCacheTTL bounds how long a snapshot is kept in Redis.
const DefaultCacheTTL = 7 * 24 * time.Hour

// RedisCache keeps one snapshot per session under tweetsweep:cache:<session>.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to a redis:// URL.
func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse cache URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect cache: %w", err)
	}
	return NewRedisCacheWithClient(client, ttl), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func redisKey(session string) string {
	return redisKeyPrefix + session
}

func (c *RedisCache) Load(ctx context.Context, session string) ([]domain.Item, error) {
	data, err := c.client.Get(ctx, redisKey(session)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache: %w", err)
	}
	var items []domain.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode cache: %w", err)
	}
	return items, nil
}

func (c *RedisCache) Save(ctx context.Context, session string, items []domain.Item) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := c.client.Set(ctx, redisKey(session), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

// Close releases the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
