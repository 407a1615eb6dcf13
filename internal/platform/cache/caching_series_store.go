// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"market_analyzer/internal/feature/bars/domain/entity"
	"market_analyzer/internal/feature/bars/usecase"
)

const defaultTTL = 5 * time.Minute

// CachingSeriesStore decorates a SeriesStore with a Redis read-through cache.
// Reads are cached per ticker; a Replace invalidates every key of that ticker.
type CachingSeriesStore struct {
	inner     usecase.SeriesStore
	rdb       *redis.Client
	ttl       func() time.Duration
	namespace string
}

var _ usecase.SeriesStore = (*CachingSeriesStore)(nil)

// NewCachingSeriesStore decorates a SeriesStore with Redis caching.
// If ttl is 0, it defaults to 5 minutes. If namespace is empty, it uses "bars".
// A nil rdb disables caching.
func NewCachingSeriesStore(rdb *redis.Client, ttl time.Duration, inner usecase.SeriesStore, namespace string) *CachingSeriesStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if namespace == "" {
		namespace = "bars"
	}
	return &CachingSeriesStore{
		inner:     inner,
		rdb:       rdb,
		ttl:       func() time.Duration { return ttl },
		namespace: namespace,
	}
}

// ExpireDailyAt makes cached entries live until the next hour:00 in loc,
// which lines up with a daily ingest schedule.
func (c *CachingSeriesStore) ExpireDailyAt(hour int, loc *time.Location) *CachingSeriesStore {
	c.ttl = func() time.Duration { return TimeUntilNext(time.Now(), hour, loc) }
	return c
}

// EnsureSeries passes through to the underlying store.
func (c *CachingSeriesStore) EnsureSeries(ctx context.Context) error {
	return c.inner.EnsureSeries(ctx)
}

// Replace replaces the partition and invalidates its cache entries.
// Entries are invalidated even when the inner Replace fails, since a failed
// swap leaves staged rows visible to the store.
func (c *CachingSeriesStore) Replace(ctx context.Context, ticker string, bars []entity.Bar) error {
	err := c.inner.Replace(ctx, ticker, bars)
	if c.rdb == nil {
		return err
	}
	// Best effort: a stale entry expires with its TTL
	if derr := c.deleteByPattern(ctx, c.cacheKeyPrefix(ticker)+"*"); derr != nil {
		slog.Warn("failed to invalidate cached series", "ticker", ticker, "error", derr)
	}
	return err
}

// ReadOrdered returns the partition, checking the cache first.
func (c *CachingSeriesStore) ReadOrdered(ctx context.Context, ticker string) ([]entity.Bar, error) {
	// Bypass cache if Redis is not configured
	if c.rdb == nil {
		return c.inner.ReadOrdered(ctx, ticker)
	}

	key := c.cacheKey(ticker)

	// 1) Check cache
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out []entity.Bar
		if err := json.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	// 2) Fallback to the store
	out, err := c.inner.ReadOrdered(ctx, ticker)
	if err != nil {
		return nil, err
	}

	// 3) Store in cache (best effort)
	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl()).Err()
	}

	return out, nil
}

// cacheKey generates the cache key of a ticker's ordered series.
func (c *CachingSeriesStore) cacheKey(ticker string) string {
	return c.cacheKeyPrefix(ticker) + "ordered"
}

// cacheKeyPrefix generates a prefix for invalidating every entry of a ticker.
func (c *CachingSeriesStore) cacheKeyPrefix(ticker string) string {
	return fmt.Sprintf("%s:%s:", c.namespace, safe(strings.ToUpper(ticker)))
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (c *CachingSeriesStore) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
