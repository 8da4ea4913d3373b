package verifier

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisReplayGuard shares the seen-set between gateway replicas.
type RedisReplayGuard struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisReplayGuard wraps an existing client. Keys are stored as
// prefix + key.
func NewRedisReplayGuard(client redis.UniversalClient, prefix string) *RedisReplayGuard {
	if prefix == "" {
		prefix = "metadata-gateway:replay:"
	}
	return &RedisReplayGuard{client: client, prefix: prefix}
}

// NewRedisReplayGuardFromURL connects using a redis:// URL.
func NewRedisReplayGuardFromURL(ctx context.Context, redisURL, prefix string) (*RedisReplayGuard, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisReplayGuard(client, prefix), nil
}

func (g *RedisReplayGuard) Record(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SETNX failed: %w", err)
	}
	return ok, nil
}

func (g *RedisReplayGuard) Forget(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, g.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis DEL failed: %w", err)
	}
	return nil
}

func (g *RedisReplayGuard) Close() error {
	return g.client.Close()
}
