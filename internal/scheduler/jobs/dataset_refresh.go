package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/alphalab/internal/marketdata"
	"github.com/wonny/alphalab/pkg/logger"
)

// Refresher re-downloads a dataset and writes it to the store and cache
type Refresher interface {
	Refresh(ctx context.Context, start, end time.Time, limit int) (*marketdata.Dataset, error)
}

// DatasetRefreshJob re-fetches histories from a fixed start date up to today
// ⭐ SSOT: 데이터셋 갱신 스케줄은 이 Job에서만
type DatasetRefreshJob struct {
	refresher Refresher
	start     time.Time
	limit     int
	schedule  string
	logger    *logger.Logger
	now       func() time.Time
}

// NewDatasetRefreshJob creates a new dataset refresh job; an empty schedule runs daily after the US close
func NewDatasetRefreshJob(refresher Refresher, start time.Time, limit int, schedule string, log *logger.Logger) *DatasetRefreshJob {
	if schedule == "" {
		schedule = "0 30 22 * * 1-5" // 22:30 UTC weekdays (with seconds)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &DatasetRefreshJob{
		refresher: refresher,
		start:     start,
		limit:     limit,
		schedule:  schedule,
		logger:    log,
		now:       time.Now,
	}
}

// Name returns the job name
func (j *DatasetRefreshJob) Name() string {
	return "dataset_refresh"
}

// Schedule returns the cron schedule
func (j *DatasetRefreshJob) Schedule() string {
	return j.schedule
}

// Run executes the refresh
func (j *DatasetRefreshJob) Run(ctx context.Context) error {
	end := j.now().UTC()

	j.logger.WithFields(map[string]interface{}{
		"start": j.start.Format("2006-01-02"),
		"end":   end.Format("2006-01-02"),
	}).Info("Starting scheduled dataset refresh")

	ds, err := j.refresher.Refresh(ctx, j.start, end, j.limit)
	if err != nil {
		return fmt.Errorf("refresh dataset: %w", err)
	}

	j.logger.WithField("tickers", ds.Len()).Info("Scheduled dataset refresh completed successfully")
	return nil
}
