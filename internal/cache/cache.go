// Package cache provides a Redis-backed read cache for ranked candidate pages
// and liked lists. Cached entries are a staleness optimization, never
// authoritative: every swipe write invalidates the owner's keys, and readers
// that race an invalidation simply see one stale page.
//
//	Key:   feed:<user_id>:<view_type>   (latest ranked batch, JSON)
//	Key:   likes:<user_id>              (liked-list, JSON)
//	TTL:   5 minutes
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avdelag1/swipess/internal/metrics"
)

const (
	FeedPrefix  = "feed:"
	LikesPrefix = "likes:"

	// EntryTTL caps how stale a cached view can get even if an invalidation
	// event is lost.
	EntryTTL = 5 * time.Minute
)

// Cache wraps a Redis client with feed/likes helpers.
type Cache struct {
	client *redis.Client
}

// New creates a cache using the provided Redis client.
func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// GetFeed loads a cached ranked batch into dest. Returns false on a miss.
// Redis errors are returned so callers can fall through to the source.
func (c *Cache) GetFeed(ctx context.Context, userID, viewType string, dest interface{}) (bool, error) {
	return c.get(ctx, feedKey(userID, viewType), dest)
}

// SetFeed stores a ranked batch for a user and view type.
func (c *Cache) SetFeed(ctx context.Context, userID, viewType string, value interface{}) error {
	return c.set(ctx, feedKey(userID, viewType), value)
}

// GetLikes loads a cached liked-list into dest. Returns false on a miss.
func (c *Cache) GetLikes(ctx context.Context, userID string, dest interface{}) (bool, error) {
	return c.get(ctx, LikesPrefix+userID, dest)
}

// SetLikes stores a user's liked-list.
func (c *Cache) SetLikes(ctx context.Context, userID string, value interface{}) error {
	return c.set(ctx, LikesPrefix+userID, value)
}

// InvalidateUser drops every cached view owned by a user: both feed view
// types and the liked-list. Called after a successful swipe write.
func (c *Cache) InvalidateUser(ctx context.Context, userID string) error {
	keys := []string{
		feedKey(userID, "client"),
		feedKey(userID, "owner"),
		LikesPrefix + userID,
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache: invalidate %s: %w", userID, err)
	}
	return nil
}

func (c *Cache) get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheHitsTotal.WithLabelValues("miss").Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// A corrupt entry behaves like a miss; the next Set overwrites it.
		metrics.CacheHitsTotal.WithLabelValues("miss").Inc()
		return false, nil
	}
	metrics.CacheHitsTotal.WithLabelValues("hit").Inc()
	return true, nil
}

func (c *Cache) set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, EntryTTL).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

func feedKey(userID, viewType string) string {
	return FeedPrefix + userID + ":" + viewType
}
