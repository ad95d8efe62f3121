package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "helios:entitlement:"

// cacheRetention keeps entries around well past freshness so stale values
// remain available for offline fallback.
const cacheRetention = 30 * 24 * time.Hour

// Cache stores entitlement results in Redis. Freshness is computed from
// the embedded FetchedAt, not the Redis TTL.
type Cache struct {
	client *redis.Client
}

// NewCache constructs a Cache.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Get returns the cached result for an extension, reporting whether one
// exists at all.
func (c *Cache) Get(ctx context.Context, extensionID string) (Result, bool, error) {
	data, err := c.client.Get(ctx, cacheKeyPrefix+extensionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Result{}, false, nil
		}
		return Result{}, false, fmt.Errorf("subscription: cache get: %w", err)
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return Result{}, false, fmt.Errorf("subscription: cache decode: %w", err)
	}
	return res, true, nil
}

// Put stores a result.
func (c *Cache) Put(ctx context.Context, res Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("subscription: cache encode: %w", err)
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+res.ExtensionID, data, cacheRetention).Err(); err != nil {
		return fmt.Errorf("subscription: cache put: %w", err)
	}
	return nil
}

// Delete invalidates one extension's entry.
func (c *Cache) Delete(ctx context.Context, extensionID string) error {
	return c.client.Del(ctx, cacheKeyPrefix+extensionID).Err()
}

// DeleteAll invalidates every entitlement entry.
func (c *Cache) DeleteAll(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, cacheKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
