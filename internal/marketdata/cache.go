package marketdata

import (
	"context"
	"time"

	"github.com/wonny/alphalab/internal/contracts"
	"github.com/wonny/alphalab/pkg/logger"
	"github.com/wonny/alphalab/pkg/redis"
)

// DatasetCache keeps fetched datasets in redis
type DatasetCache struct {
	cache *redis.Cache
	ttl   time.Duration
}

// NewDatasetCache creates a dataset cache; ttl <= 0 selects redis.TTLDaily
func NewDatasetCache(cache *redis.Cache, ttl time.Duration) *DatasetCache {
	if ttl <= 0 {
		ttl = redis.TTLDaily
	}
	return &DatasetCache{cache: cache, ttl: ttl}
}

// Get returns the cached dataset for the window and limit, or (nil, false)
func (c *DatasetCache) Get(ctx context.Context, start, end time.Time, limit int) (*Dataset, bool, error) {
	var ds Dataset
	ok, err := c.cache.Get(ctx, redis.DatasetKey(start, end, limit), &ds)
	if err != nil || !ok {
		return nil, false, err
	}
	return &ds, true, nil
}

// Set stores ds under its window and limit
func (c *DatasetCache) Set(ctx context.Context, ds *Dataset, limit int) error {
	return c.cache.Set(ctx, redis.DatasetKey(ds.Start, ds.End, limit), ds, c.ttl)
}

// Invalidate drops the cached dataset for the window and limit
func (c *DatasetCache) Invalidate(ctx context.Context, start, end time.Time, limit int) error {
	return c.cache.Delete(ctx, redis.DatasetKey(start, end, limit))
}

// CachedSource wraps a HistorySource with a per-ticker redis cache
type CachedSource struct {
	source contracts.HistorySource
	cache  *redis.Cache
	ttl    time.Duration
	logger *logger.Logger
}

// NewCachedSource creates a caching history source
func NewCachedSource(source contracts.HistorySource, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *CachedSource {
	if ttl <= 0 {
		ttl = redis.TTLDaily
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CachedSource{source: source, cache: cache, ttl: ttl, logger: log}
}

// History serves from cache when possible; cache failures fall through to the source
func (s *CachedSource) History(ctx context.Context, ticker string, start, end time.Time) ([]contracts.Bar, error) {
	key := redis.HistoryKey(ticker, start, end)

	var bars []contracts.Bar
	if ok, err := s.cache.Get(ctx, key, &bars); err != nil {
		s.logger.WithError(err).WithField("ticker", ticker).Warn("History cache read failed")
	} else if ok {
		return bars, nil
	}

	bars, err := s.source.History(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, bars, s.ttl); err != nil {
		s.logger.WithError(err).WithField("ticker", ticker).Warn("History cache write failed")
	}
	return bars, nil
}

var _ contracts.HistorySource = (*CachedSource)(nil)
