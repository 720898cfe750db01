package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/creator-xp/internal/config"
	"github.com/creator-xp/internal/domain"
)

// NameCache caches member display names resolved through the gateway
type NameCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewNameCache connects to Redis and returns a display-name cache
func NewNameCache(ctx context.Context, cfg *config.RedisConfig, logger *slog.Logger) (*NameCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewNameCacheFromClient(client, cfg.NameTTL, logger), nil
}

// NewNameCacheFromClient wraps an existing client
func NewNameCacheFromClient(client *redis.Client, ttl time.Duration, logger *slog.Logger) *NameCache {
	return &NameCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Close closes the Redis connection
func (c *NameCache) Close() error {
	return c.client.Close()
}

// nameKey returns the Redis key for a member's cached display name
func nameKey(memberID string) string {
	return fmt.Sprintf("member:%s:name", memberID)
}

// DisplayName returns a cached display name or domain.ErrMemberNotFound
func (c *NameCache) DisplayName(ctx context.Context, memberID string) (string, error) {
	name, err := c.client.Get(ctx, nameKey(memberID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrMemberNotFound
		}
		return "", fmt.Errorf("getting display name: %w", err)
	}
	return name, nil
}

// SetDisplayName caches a display name for the configured TTL
func (c *NameCache) SetDisplayName(ctx context.Context, memberID, name string) error {
	if err := c.client.Set(ctx, nameKey(memberID), name, c.ttl).Err(); err != nil {
		return fmt.Errorf("setting display name: %w", err)
	}
	return nil
}
