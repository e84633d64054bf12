package jobs

import (
	"context"
)

// StaleCleaner drops expired cache entries
type StaleCleaner interface {
	CleanStale() int
}

// CacheCleanupJob cleans stale in-process datasets
type CacheCleanupJob struct {
	cache StaleCleaner
}

// NewCacheCleanupJob creates a new cache cleanup job
func NewCacheCleanupJob(cache StaleCleaner) *CacheCleanupJob {
	return &CacheCleanupJob{cache: cache}
}

// Name returns the job name
func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}

// Schedule returns the cron schedule
func (j *CacheCleanupJob) Schedule() string {
	return "0 */5 * * * *" // every 5 minutes
}

// Run executes the cleanup
func (j *CacheCleanupJob) Run(ctx context.Context) error {
	j.cache.CleanStale()
	return nil
}
