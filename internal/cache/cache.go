// Package cache implements the conversation history cache on Redis.
//
// The cache is a strict accelerator: every operation absorbs Redis failures
// and reports them only through logging, so a down or flaky Redis degrades
// reads to the database instead of failing requests.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spurhq/spurbot/internal/conversation"
	"github.com/spurhq/spurbot/internal/log"
)

// Key returns the Redis key that holds a session's cached history.
func Key(sessionID string) string {
	return "conversation:" + sessionID
}

// payload is the JSON envelope stored under each key.
type payload struct {
	Messages []conversation.Message `json:"messages"`
}

// Cache stores rendered conversation histories in Redis with a fixed TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger log.Logger
}

// New creates a history cache on the given Redis client. Entries expire
// after ttl.
func New(client *redis.Client, ttl time.Duration, logger log.Logger) *Cache {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached history for a session. The second return value is
// false on a miss, on a Redis error, and on a corrupt entry; callers fall
// through to the database in all three cases.
func (c *Cache) Get(ctx context.Context, sessionID string) ([]conversation.Message, bool) {
	raw, err := c.client.Get(ctx, Key(sessionID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", "session_id", sessionID, "error", err)
		}
		return nil, false
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.logger.Warn("cache entry corrupt, treating as miss", "session_id", sessionID, "error", err)
		return nil, false
	}

	return p.Messages, true
}

// Put stores a session's history. Failures are logged and swallowed.
func (c *Cache) Put(ctx context.Context, sessionID string, messages []conversation.Message) {
	raw, err := json.Marshal(payload{Messages: messages})
	if err != nil {
		c.logger.Warn("cache encode failed", "session_id", sessionID, "error", err)
		return
	}

	if err := c.client.Set(ctx, Key(sessionID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "session_id", sessionID, "error", err)
	}
}

// Invalidate drops a session's cached history. Failures are logged and
// swallowed; a stale entry expires via TTL at worst.
func (c *Cache) Invalidate(ctx context.Context, sessionID string) {
	if err := c.client.Del(ctx, Key(sessionID)).Err(); err != nil {
		c.logger.Warn("cache invalidate failed", "session_id", sessionID, "error", err)
	}
}

// Close releases the underlying Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
