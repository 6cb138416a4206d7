package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

const (
	analyticsKeyPrefix = "analytics:"

	// DefaultAnalyticsTTL is how long a computed aggregate is served from cache.
	DefaultAnalyticsTTL = 300 * time.Second
)

// GetAnalytics returns the cached aggregate bytes for key.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetAnalytics(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

// SetAnalytics stores aggregate bytes under key for ttl.
func (c *Cache) SetAnalytics(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache analytics: %w", err)
	}
	return nil
}

// AnalyticsCache is the read-through cache in front of the aggregation
// engine. Redis failures are absorbed: lookups miss and stores are dropped.
type AnalyticsCache struct {
	cache  *Cache
	key    []byte
	ttl    time.Duration
	logger *slog.Logger
}

// NewAnalyticsCache creates an analytics cache. secret keys the owner digest
// embedded in every cache key.
func NewAnalyticsCache(c *Cache, secret string, ttl time.Duration, logger *slog.Logger) *AnalyticsCache {
	if ttl <= 0 {
		ttl = DefaultAnalyticsTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	// blake2b accepts keys up to 64 bytes; longer secrets are compressed.
	key := []byte(secret)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	return &AnalyticsCache{
		cache:  c,
		key:    key,
		ttl:    ttl,
		logger: logger.With("component", "cache.analytics"),
	}
}

// Key derives the cache key for a request. The path and query are
// normalized, and the owner id is bound through a keyed digest so one
// principal can never read another's cached aggregate.
func (a *AnalyticsCache) Key(requestPath, rawQuery, ownerID string) string {
	return analyticsKeyPrefix + normalizeRequest(requestPath, rawQuery) + ":" + ownerDigest(a.key, ownerID)
}

// Lookup returns cached bytes and true on a hit.
func (a *AnalyticsCache) Lookup(ctx context.Context, key string) ([]byte, bool) {
	data, err := a.cache.GetAnalytics(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			a.logger.Warn("analytics cache lookup failed", "error", err)
		}
		return nil, false
	}
	return data, true
}

// Store caches data for the configured TTL. Failures are logged only.
func (a *AnalyticsCache) Store(ctx context.Context, key string, data []byte) {
	if err := a.cache.SetAnalytics(ctx, key, data, a.ttl); err != nil {
		a.logger.Warn("analytics cache store failed", "error", err)
	}
}

func normalizeRequest(requestPath, rawQuery string) string {
	p := path.Clean("/" + requestPath)
	if rawQuery == "" {
		return p
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return p + "?" + rawQuery
	}
	// Encode sorts by key.
	return p + "?" + values.Encode()
}

func ownerDigest(key []byte, ownerID string) string {
	h, err := blake2b.New256(key)
	if err != nil {
		// Only reachable with keys over 64 bytes, which NewAnalyticsCache prevents.
		sum := blake2b.Sum256(append(append([]byte{}, key...), ownerID...))
		return hex.EncodeToString(sum[:16])
	}
	h.Write([]byte(ownerID))
	return hex.EncodeToString(h.Sum(nil)[:16])
}
