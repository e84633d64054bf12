package marketdata

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/alphalab/internal/contracts"
	"github.com/wonny/alphalab/pkg/config"
	"github.com/wonny/alphalab/pkg/logger"
)

// Fetcher downloads histories for a ticker list concurrently
// ⭐ SSOT: 종목별 재시도 + 결측 종목 제외 규칙은 여기서만
type Fetcher struct {
	source      contracts.HistorySource
	logger      *logger.Logger
	maxAttempts int
	concurrency int
	retryDelay  time.Duration
}

// NewFetcher creates a fetcher over source using the fetch settings in cfg
func NewFetcher(source contracts.HistorySource, cfg *config.Config, log *logger.Logger) *Fetcher {
	if log == nil {
		log = logger.Nop()
	}
	f := &Fetcher{
		source:      source,
		logger:      log.Component("fetcher"),
		maxAttempts: cfg.Fetch.MaxAttempts,
		concurrency: cfg.Fetch.Concurrency,
		retryDelay:  time.Second,
	}
	if f.maxAttempts < 1 {
		f.maxAttempts = 1
	}
	if f.concurrency < 1 {
		f.concurrency = 1
	}
	return f
}

// WithRetryDelay sets the pause between per-ticker attempts
func (f *Fetcher) WithRetryDelay(d time.Duration) *Fetcher {
	f.retryDelay = d
	return f
}

// Histories fetches every ticker over [start, end].
// A ticker that keeps failing or has no bars is left out; the result keeps input order.
// Only context cancellation fails the whole fetch.
func (f *Fetcher) Histories(ctx context.Context, tickers []string, start, end time.Time) (*Dataset, error) {
	tickers = contracts.UniqueTickers(tickers)
	results := make([][]contracts.Bar, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for i, ticker := range tickers {
		g.Go(func() error {
			bars, err := f.history(gctx, ticker, start, end)
			if err != nil {
				return err
			}
			results[i] = bars
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	ds := NewDataset(start, end)
	ds.FetchedAt = time.Now()
	for i, ticker := range tickers {
		ds.Add(ticker, results[i])
	}

	f.logger.WithFields(map[string]interface{}{
		"requested": len(tickers),
		"kept":      ds.Len(),
		"dropped":   len(tickers) - ds.Len(),
	}).Info("Fetched histories")

	return ds, nil
}

// history retries one ticker up to maxAttempts; exhaustion yields an empty series
func (f *Fetcher) history(ctx context.Context, ticker string, start, end time.Time) ([]contracts.Bar, error) {
	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		bars, err := f.source.History(ctx, ticker, start, end)
		if err == nil {
			return bars, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		if attempt < f.maxAttempts && f.retryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.retryDelay):
			}
		}
	}

	f.logger.WithFields(map[string]interface{}{
		"ticker":   ticker,
		"attempts": f.maxAttempts,
	}).WithError(lastErr).Warn("Dropping ticker after failed attempts")

	return nil, nil
}
