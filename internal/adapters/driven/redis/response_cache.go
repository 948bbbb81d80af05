package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
	"github.com/custodia-labs/adsync-core/internal/core/ports/driven"
	"github.com/custodia-labs/adsync-core/internal/metrics"
)

// Verify interface compliance
var _ driven.ResponseCache = (*ResponseCache)(nil)

const cachePrefix = KeyPrefix + "cache:"

// scanBatch is the COUNT hint used when clearing keys
const scanBatch = 200

// ResponseCache implements driven.ResponseCache on Redis.
// Freshness is enforced by native key expiry set from the class TTL,
// so instances sharing a Redis share cached platform reads.
type ResponseCache struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewResponseCache creates a Redis-backed response cache
func NewResponseCache(client redis.UniversalClient, logger *slog.Logger) *ResponseCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResponseCache{client: client, logger: logger}
}

func redisKey(class domain.EndpointClass, params map[string]string) string {
	return cachePrefix + domain.CacheKey(class, params)
}

// Get returns the cached payload. Redis errors count as a miss.
func (c *ResponseCache) Get(ctx context.Context, class domain.EndpointClass, params map[string]string) ([]byte, bool) {
	payload, err := c.client.Get(ctx, redisKey(class, params)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("response cache read failed", "class", class, "error", err)
		}
		metrics.RecordCacheLookup(string(class), false)
		return nil, false
	}
	metrics.RecordCacheLookup(string(class), true)
	return payload, true
}

// Set stores the payload with the class TTL
func (c *ResponseCache) Set(ctx context.Context, class domain.EndpointClass, params map[string]string, payload []byte) error {
	if err := c.client.Set(ctx, redisKey(class, params), payload, class.TTL()).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", class, err)
	}
	return nil
}

// Clear removes entries: everything for an empty class, one class for nil
// params, otherwise the single matching entry
func (c *ResponseCache) Clear(ctx context.Context, class domain.EndpointClass, params map[string]string) error {
	switch {
	case class == "":
		return c.deleteMatching(ctx, cachePrefix+"*")
	case params == nil:
		return c.deleteMatching(ctx, cachePrefix+domain.CacheKeyPrefix(class)+"*")
	default:
		if err := c.client.Del(ctx, redisKey(class, params)).Err(); err != nil {
			return fmt.Errorf("cache clear %s: %w", class, err)
		}
		return nil
	}
}

func (c *ResponseCache) deleteMatching(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("cache scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cache delete: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
