package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const metricsKey = "dashboard:metrics"

// Cache wraps Redis based caching for the computed metrics. A nil cache or
// nil client disables caching without changing the call sites.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get loads the cached metrics. The bool reports a hit.
func (c *Cache) Get(ctx context.Context, dest *Metrics) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	payload, err := c.client.Get(ctx, metricsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores the metrics with the configured TTL.
func (c *Cache) Set(ctx context.Context, metrics *Metrics) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(metrics)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, metricsKey, raw, c.ttl).Err()
}

// Invalidate drops the cached metrics.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, metricsKey).Err()
}
