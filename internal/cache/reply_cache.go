package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rewired-gh/lotoracle/internal/logger"
)

// Entry is a cached oracle reply.
type Entry struct {
	Reply    string    `json:"reply"`
	Model    string    `json:"model"`
	StoredAt time.Time `json:"stored_at"`
}

// ReplyCache caches oracle replies by model and prompt. A ReplyCache over a
// nil RedisClient never hits and silently drops writes.
type ReplyCache struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewReplyCache creates a reply cache with the given entry lifetime.
func NewReplyCache(redis *RedisClient, ttl time.Duration) *ReplyCache {
	return &ReplyCache{redis: redis, ttl: ttl}
}

// PromptHash returns the hex SHA-256 of prompt.
func PromptHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// Key returns the Redis key for a model and prompt.
func Key(model, prompt string) string {
	return fmt.Sprintf("oracle:reply:%s:%s", model, PromptHash(prompt))
}

// Enabled reports whether the cache is backed by Redis.
func (c *ReplyCache) Enabled() bool {
	return c != nil && c.redis != nil
}

// Get returns the cached reply for prompt, if any.
func (c *ReplyCache) Get(ctx context.Context, model, prompt string) (string, bool) {
	if !c.Enabled() {
		return "", false
	}

	var entry Entry
	if err := c.redis.Get(ctx, Key(model, prompt), &entry); err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("Reply cache lookup failed: %v", err)
		}
		return "", false
	}
	return entry.Reply, true
}

// Set stores reply for prompt.
func (c *ReplyCache) Set(ctx context.Context, model, prompt, reply string) error {
	if !c.Enabled() {
		return nil
	}
	entry := Entry{Reply: reply, Model: model, StoredAt: time.Now()}
	return c.redis.Set(ctx, Key(model, prompt), entry, c.ttl)
}

// Invalidate removes the cached reply for prompt.
func (c *ReplyCache) Invalidate(ctx context.Context, model, prompt string) error {
	if !c.Enabled() {
		return nil
	}
	return c.redis.Delete(ctx, Key(model, prompt))
}
