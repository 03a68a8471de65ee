package geocode

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Cache stores found coordinates by address key.
type Cache interface {
	// GetCoordinates returns (nil, false, nil) on a miss.
	GetCoordinates(ctx context.Context, key string) (*Result, bool, error)
	PutCoordinates(ctx context.Context, key string, r *Result) error
}

// CacheKey returns SHA-256 hex of the normalized address for cache lookup.
func CacheKey(address string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(address), " "))
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

// CachedClient serves repeat addresses from a Cache and delegates misses.
// Only found results are cached so that not-found addresses are asked again
// on the next run.
type CachedClient struct {
	next  Client
	cache Cache
	log   *zap.Logger
}

// NewCachedClient wraps next with cache.
func NewCachedClient(next Client, cache Cache) *CachedClient {
	return &CachedClient{next: next, cache: cache, log: zap.L().With(zap.String("component", "geocode.cache"))}
}

// Lookup implements Client. Cache failures are logged and treated as misses.
func (c *CachedClient) Lookup(ctx context.Context, address string) (*Result, error) {
	key := CacheKey(address)

	cached, ok, err := c.cache.GetCoordinates(ctx, key)
	switch {
	case err != nil:
		c.log.Warn("cache read failed", zap.String("key", key[:12]), zap.Error(err))
	case ok && cached != nil:
		c.log.Debug("geocode cache hit", zap.String("key", key[:12]))
		hit := *cached
		hit.Found = true
		hit.Cached = true
		return &hit, nil
	}

	res, err := c.next.Lookup(ctx, address)
	if err != nil {
		return nil, err
	}
	if res.Found {
		if err := c.cache.PutCoordinates(ctx, key, res); err != nil {
			c.log.Warn("cache write failed", zap.String("key", key[:12]), zap.Error(err))
		}
	}
	return res, nil
}
