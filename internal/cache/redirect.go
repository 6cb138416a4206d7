package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/penshort/shortlytics/internal/model"
)

// Cache key prefixes and TTLs.
const (
	shortURLKeyPrefix = "url:"
	negCacheKeySuffix = ":neg"

	// DefaultRedirectTTL is the TTL for cached redirect targets.
	DefaultRedirectTTL = time.Hour

	// NegativeCacheTTL is the TTL for negative cache entries.
	NegativeCacheTTL = 5 * time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// GetShortURL retrieves the redirect view of an alias from cache.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetShortURL(ctx context.Context, alias string) (*model.CachedShortURL, error) {
	key := shortURLKeyPrefix + alias

	res := c.client.HGetAll(ctx, key)
	result, err := res.Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}

	if len(result) == 0 {
		return nil, ErrCacheMiss
	}

	var cached model.CachedShortURL
	if err := res.Scan(&cached); err != nil {
		return nil, fmt.Errorf("failed to decode cached short url: %w", err)
	}
	if cached.LongURL == "" {
		return nil, ErrCacheMiss
	}

	return &cached, nil
}

// SetShortURL stores the redirect view of s. Short URLs are immutable, so
// the entry only ages out.
func (c *Cache) SetShortURL(ctx context.Context, s *model.ShortURL, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultRedirectTTL
	}
	key := shortURLKeyPrefix + s.Alias
	cached := s.ToCached()

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, cached)
	pipe.Expire(ctx, key, ttl)
	// A stale negative entry would hide a freshly created alias.
	pipe.Del(ctx, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache short url: %w", err)
	}

	return nil
}

// DeleteShortURL removes an alias and its negative entry from cache.
func (c *Cache) DeleteShortURL(ctx context.Context, alias string) error {
	key := shortURLKeyPrefix + alias

	if err := c.client.Del(ctx, key, key+negCacheKeySuffix).Err(); err != nil {
		return fmt.Errorf("failed to delete short url from cache: %w", err)
	}

	return nil
}

// IsNegativelyCached checks if an alias is in negative cache.
func (c *Cache) IsNegativelyCached(ctx context.Context, alias string) (bool, error) {
	key := shortURLKeyPrefix + alias + negCacheKeySuffix

	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}

	return exists > 0, nil
}

// SetNegativeCache marks an alias as not found.
func (c *Cache) SetNegativeCache(ctx context.Context, alias string) error {
	key := shortURLKeyPrefix + alias + negCacheKeySuffix

	if err := c.client.SetEx(ctx, key, "", NegativeCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}

	return nil
}
