package positions

import (
	"context"
	"fmt"
	"time"

	"github.com/mselser95/portfolio-sync/pkg/cache"
	"github.com/mselser95/portfolio-sync/pkg/types"
)

// SeriesFetcher fetches series metadata.
type SeriesFetcher interface {
	Series(ctx context.Context, ticker string) (*types.Series, error)
}

// CachedSeriesClient wraps a SeriesFetcher with caching. Many holdings share
// a series, so one lookup per series per TTL is enough.
type CachedSeriesClient struct {
	client SeriesFetcher
	cache  cache.Cache
	ttl    time.Duration
}

// NewCachedSeriesClient creates a new cached series client. A nil cache
// disables caching.
func NewCachedSeriesClient(client SeriesFetcher, c cache.Cache, ttl time.Duration) *CachedSeriesClient {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedSeriesClient{
		client: client,
		cache:  c,
		ttl:    ttl,
	}
}

// Series returns series metadata, from cache when present.
func (c *CachedSeriesClient) Series(ctx context.Context, ticker string) (*types.Series, error) {
	cacheKey := fmt.Sprintf("series:%s", ticker)

	if c.cache != nil {
		if cached, ok := c.cache.Get(cacheKey); ok {
			if series, ok := cached.(*types.Series); ok {
				SeriesCacheHitsTotal.Inc()
				return series, nil
			}
		}
		SeriesCacheMissesTotal.Inc()
	}

	series, err := c.client.Series(ctx, ticker)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(cacheKey, series, c.ttl)
	}

	return series, nil
}
