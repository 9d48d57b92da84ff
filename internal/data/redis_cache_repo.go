package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linguavox/linguavox/internal/domain/model"
)

// RedisStatusCache caches the externally observable view of terminal uploads.
// Terminal rows never change, so cached entries can never go stale.
type RedisStatusCache struct {
	client redis.UniversalClient
}

// NewRedisStatusCache creates a new RedisStatusCache with the given Redis client.
func NewRedisStatusCache(client redis.UniversalClient) *RedisStatusCache {
	return &RedisStatusCache{client: client}
}

func statusCacheKey(id string) string {
	return "upload:status:" + id
}

// GetStatus retrieves a cached terminal status. A cache miss returns (nil, nil).
func (r *RedisStatusCache) GetStatus(ctx context.Context, id string) (*model.UploadStatusResponse, error) {
	if id == "" {
		return nil, errors.New("id cannot be empty")
	}

	result, err := r.client.Get(ctx, statusCacheKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", statusCacheKey(id), errors.Join(ErrCacheUnavailable, err))
	}

	var resp model.UploadStatusResponse
	if err := json.Unmarshal([]byte(result), &resp); err != nil {
		return nil, fmt.Errorf("decode cached status: %w", err)
	}
	return &resp, nil
}

// SetStatus stores a terminal status response with the given TTL. Non-terminal
// responses are rejected so the cache can never serve a mutable state.
func (r *RedisStatusCache) SetStatus(
	ctx context.Context,
	resp *model.UploadStatusResponse,
	ttl time.Duration,
) error {
	if resp == nil || resp.ID == "" {
		return errors.New("status response with id is required")
	}
	if !model.UploadStatus(resp.Status).Terminal() {
		return fmt.Errorf("refusing to cache non-terminal status %q", resp.Status)
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	if err := r.client.Set(ctx, statusCacheKey(resp.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", statusCacheKey(resp.ID), errors.Join(ErrCacheUnavailable, err))
	}
	return nil
}

// Health checks the health of the Redis connection.
func (r *RedisStatusCache) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// RedisConfig holds configuration for Redis connection.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// DefaultRedisConfig returns a RedisConfig with sensible defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     "localhost:6379",
		Password: "",
		DB:       0,
	}
}

// NewRedisClient creates a new Redis client with the given configuration.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
