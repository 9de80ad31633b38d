// Package cache implements the read-through page cache that sits in front
// of feed and public post reads. Entries are sonic-encoded pages with a
// short TTL; invalidation is expiry only.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const (
	// FeedTTL bounds how stale a cached feed page may be.
	FeedTTL = 5 * time.Minute
	// PublicTTL bounds how stale a cached public firehose page may be.
	PublicTTL = time.Minute
)

// FeedKey returns the cache key for one viewer's feed page. The redaction
// flag is part of the key so privileged reads never share entries with
// regular ones.
func FeedKey(viewerID, cursor int64, includeRedacted bool) string {
	return fmt.Sprintf("feed:%d:%d:%t", viewerID, cursor, includeRedacted)
}

// PublicKey returns the cache key for one public firehose page.
func PublicKey(cursor int64) string {
	return fmt.Sprintf("public_posts:%d", cursor)
}

// PageCache stores serialized pages under string keys with a TTL. Read
// paths depend on this interface rather than on the Redis client.
type PageCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisCache implements PageCache on Redis.
type RedisCache struct {
	client rueidis.Client
	logger *zap.Logger
}

// NewRedisCache creates a RedisCache with the given Redis client.
func NewRedisCache(client rueidis.Client, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		logger: logger.Named("cache"),
	}
}

// Get loads the entry under key into dest. Returns false on a miss.
// A corrupt entry counts as a miss and is dropped.
func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	if err := sonic.Unmarshal(data, dest); err != nil {
		c.logger.Warn("Dropping undecodable cache entry",
			zap.String("key", key),
			zap.Error(err))
		if delErr := c.Delete(ctx, key); delErr != nil {
			c.logger.Warn("Failed to drop cache entry", zap.Error(delErr))
		}
		return false, nil
	}

	return true, nil
}

// Set stores value under key for the given TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	err = c.client.Do(ctx,
		c.client.B().Set().Key(key).Value(string(data)).Ex(ttl).Build(),
	).Error()
	if err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}

	return nil
}

// Delete removes the entry under key, if any.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	err := c.client.Do(ctx, c.client.B().Del().Key(key).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}

	return nil
}
