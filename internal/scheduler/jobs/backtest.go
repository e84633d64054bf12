package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/alphalab/internal/runner"
	"github.com/wonny/alphalab/pkg/logger"
)

// Backtester executes a backtest request
type Backtester interface {
	Run(ctx context.Context, req runner.Request) (*runner.Response, error)
}

// BacktestJob re-runs a stored request with its window extended to today
type BacktestJob struct {
	backtester Backtester
	request    runner.Request
	schedule   string
	logger     *logger.Logger
	now        func() time.Time
}

// NewBacktestJob creates a new backtest job; an empty schedule runs daily at 23:00 UTC
func NewBacktestJob(backtester Backtester, req runner.Request, schedule string, log *logger.Logger) *BacktestJob {
	if schedule == "" {
		schedule = "0 0 23 * * *"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &BacktestJob{
		backtester: backtester,
		request:    req,
		schedule:   schedule,
		logger:     log,
		now:        time.Now,
	}
}

// Name returns the job name
func (j *BacktestJob) Name() string {
	return "backtest_" + j.request.Strategy
}

// Schedule returns the cron schedule
func (j *BacktestJob) Schedule() string {
	return j.schedule
}

// Run executes the backtest up to today
func (j *BacktestJob) Run(ctx context.Context) error {
	req := j.request
	req.End = j.now().UTC()

	resp, err := j.backtester.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("backtest %s: %w", req.Strategy, err)
	}

	s := resp.Result.Summary
	j.logger.WithFields(map[string]interface{}{
		"strategy":      req.Strategy,
		"run_id":        resp.RunID.String(),
		"final_capital": s.FinalCapital,
		"total_return":  fmt.Sprintf("%.2f%%", s.TotalReturn*100),
	}).Info("Scheduled backtest completed")
	return nil
}
