package serper

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SearchCache stores serialized search responses keyed by query hash.
// The store package satisfies this interface.
type SearchCache interface {
	GetCachedSearch(ctx context.Context, queryHash string) ([]byte, error)
	SetCachedSearch(ctx context.Context, queryHash string, data []byte, ttl time.Duration) error
}

// CachingClient wraps a Client with a best-effort response cache.
// Cache failures are logged, never surfaced.
type CachingClient struct {
	inner Client
	cache SearchCache
	ttl   time.Duration
}

// NewCachingClient wraps inner with the given cache and TTL.
func NewCachingClient(inner Client, cache SearchCache, ttl time.Duration) *CachingClient {
	return &CachingClient{inner: inner, cache: cache, ttl: ttl}
}

// QueryHash returns the cache key for a query: sha256 over the query
// text and the requested result count.
func QueryHash(query string, num int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", query, num)))
	return hex.EncodeToString(sum[:])
}

func (c *CachingClient) Search(ctx context.Context, query string, num int) ([]Result, error) {
	key := QueryHash(query, num)

	if data, err := c.cache.GetCachedSearch(ctx, key); err != nil {
		zap.L().Debug("serper: cache read failed", zap.Error(err))
	} else if data != nil {
		var results []Result
		if err := json.Unmarshal(data, &results); err == nil {
			return results, nil
		}
		zap.L().Debug("serper: discarding corrupt cache entry", zap.String("hash", key))
	}

	results, err := c.inner.Search(ctx, query, num)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(results); err == nil {
		if err := c.cache.SetCachedSearch(ctx, key, data, c.ttl); err != nil {
			zap.L().Debug("serper: cache write failed", zap.Error(err))
		}
	}

	return results, nil
}
