package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/alphalab/pkg/logger"
	"github.com/wonny/alphalab/pkg/redis"
)

// MemoryCache is an in-process dataset cache used when Redis is disabled.
// Cached datasets are shared and must be treated as read-only.
// ⭐ SSOT: 프로세스 내 데이터셋 캐싱은 이 구조체에서만
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	ttl     time.Duration
	logger  *logger.Logger
	now     func() time.Time
}

type memEntry struct {
	ds       *Dataset
	storedAt time.Time
}

// MemoryCacheStats represents cache statistics
type MemoryCacheStats struct {
	TotalCount int `json:"total_count"`
	StaleCount int `json:"stale_count"`
	Tickers    int `json:"tickers"`
}

// NewMemoryCache creates a new memory cache
func NewMemoryCache(ttl time.Duration, log *logger.Logger) *MemoryCache {
	if log == nil {
		log = logger.Nop()
	}
	return &MemoryCache{
		entries: make(map[string]memEntry),
		ttl:     ttl,
		logger:  log.Component("memcache"),
		now:     time.Now,
	}
}

// Get returns the dataset cached for the window; stale entries are misses
func (c *MemoryCache) Get(_ context.Context, start, end time.Time, limit int) (*Dataset, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[redis.DatasetKey(start, end, limit)]
	if !ok || c.stale(e) {
		return nil, false, nil
	}
	return e.ds, true, nil
}

// Set stores ds under its window and limit
func (c *MemoryCache) Set(_ context.Context, ds *Dataset, limit int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[redis.DatasetKey(ds.Start, ds.End, limit)] = memEntry{ds: ds, storedAt: c.now()}

	c.logger.WithFields(map[string]interface{}{
		"tickers": ds.Len(),
		"limit":   limit,
	}).Debug("Updated dataset cache")
	return nil
}

// Len returns the number of cached datasets
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Clear drops every entry
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]memEntry)
	c.logger.Info("Cleared dataset cache")
}

// CleanStale removes stale datasets and returns how many were removed
func (c *MemoryCache) CleanStale() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, e := range c.entries {
		if c.stale(e) {
			delete(c.entries, key)
			count++
		}
	}

	if count > 0 {
		c.logger.WithField("count", count).Info("Cleaned stale datasets from cache")
	}
	return count
}

// Stats returns cache statistics
func (c *MemoryCache) Stats() MemoryCacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := MemoryCacheStats{TotalCount: len(c.entries)}
	for _, e := range c.entries {
		if c.stale(e) {
			stats.StaleCount++
		}
		stats.Tickers += e.ds.Len()
	}
	return stats
}

// stale reports whether e outlived the TTL; a non-positive TTL never expires
func (c *MemoryCache) stale(e memEntry) bool {
	return c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl
}

var _ Cache = (*MemoryCache)(nil)
