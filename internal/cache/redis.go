// Package cache keeps oracle replies in Redis so that re-running a prediction
// over unchanged history does not call the oracle again.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rewired-gh/lotoracle/internal/logger"
)

// ErrNotInitialized is returned by a RedisClient without a connection.
var ErrNotInitialized = errors.New("redis client not initialized")

// RedisClient wraps redis.Client. A nil *RedisClient is valid and behaves
// as an always-missing cache.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient connects to addr. It returns nil when Redis is unreachable
// so callers can run without a cache.
func NewRedisClient(addr, password string, db int) *RedisClient {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Failed to connect to Redis at %s: %v", addr, err)
		_ = client.Close()
		return nil
	}

	logger.Info("Connected to Redis at %s", addr)
	return &RedisClient{client: client}
}

// Set stores a value as JSON with expiration
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if r == nil || r.client == nil {
		return ErrNotInitialized
	}

	jsonBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return r.client.Set(ctx, key, jsonBytes, expiration).Err()
}

// Get decodes a stored JSON value into dest. A missing key returns redis.Nil.
func (r *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	if r == nil || r.client == nil {
		return ErrNotInitialized
	}

	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(val), dest)
}

// Delete removes a key
func (r *RedisClient) Delete(ctx context.Context, key string) error {
	if r == nil || r.client == nil {
		return ErrNotInitialized
	}
	return r.client.Del(ctx, key).Err()
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	if r != nil && r.client != nil {
		return r.client.Close()
	}
	return nil
}
