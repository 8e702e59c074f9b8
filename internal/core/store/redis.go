package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/aniquiz/aniquiz/internal/config"
)

const redisKeyPrefix = "aniquiz"

// RedisCache is the Redis-backed cache. It implements the same Get/Set
// surface as the libsql store for shared multi-instance deployments.
type RedisCache struct {
	Client redis.UniversalClient
}

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(ctx context.Context, cfg config.StoreConfig) (*RedisCache, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("store redis address is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis store: %w", err)
	}

	return &RedisCache{Client: client}, nil
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// Get returns a cached value, or ok=false when no entry exists.
func (c *RedisCache) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	if c == nil || c.Client == nil {
		return nil, false, errors.New("redis cache is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	value, err := c.Client.Get(ctx, redisKey(namespace, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("fetch cached value: %w", err)
	}

	return value, true, nil
}

// Set stores a value without expiry; versioned namespaces handle shape
// changes the same way the libsql backend does.
func (c *RedisCache) Set(ctx context.Context, namespace, key string, value []byte) error {
	if c == nil || c.Client == nil {
		return errors.New("redis cache is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if err := c.Client.Set(ctx, redisKey(namespace, key), value, 0).Err(); err != nil {
		return fmt.Errorf("store cached value: %w", err)
	}
	return nil
}

func redisKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s:%s", redisKeyPrefix, strings.TrimSpace(namespace), strings.TrimSpace(key))
}
