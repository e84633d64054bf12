package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wonny/alphalab/internal/backtest"
	"github.com/wonny/alphalab/internal/contracts"
	"github.com/wonny/alphalab/internal/marketdata"
	"github.com/wonny/alphalab/internal/runner"
	"github.com/wonny/alphalab/internal/strategy"
	"github.com/wonny/alphalab/internal/universe"
	"github.com/wonny/alphalab/pkg/config"
	"github.com/wonny/alphalab/pkg/database"
	"github.com/wonny/alphalab/pkg/httputil"
	"github.com/wonny/alphalab/pkg/logger"
	"github.com/wonny/alphalab/pkg/redis"
)

// app holds the wired dependencies shared by commands
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *database.DB            // nil when DATABASE_URL is unset
	redis  *redis.Client           // disabled client when REDIS_ENABLED=false
	runs   *backtest.RunRepository // nil without db
	memory *marketdata.MemoryCache // nil when Redis is enabled
	loader *marketdata.Loader
	runner *runner.Runner
}

// newApp wires storage, data acquisition and the runner.
// An empty tickers list selects the S&P 500 universe.
func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger, tickers []string) (*app, error) {
	a := &app{cfg: cfg, log: log}

	// 1. Postgres (optional)
	db, err := database.New(ctx, cfg)
	switch {
	case errors.Is(err, database.ErrDisabled):
		log.Info("DATABASE_URL not set, running without Postgres store")
	case err != nil:
		return nil, fmt.Errorf("connect to database: %w", err)
	default:
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		a.db = db
		a.runs = backtest.NewRunRepository(db.Pool)
	}

	// 2. Redis (optional)
	rc, err := redis.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, running without cache")
		rc = redis.Disabled()
	}
	a.redis = rc

	// 3. Universe + history sources
	httpClient := httputil.New(cfg, log)

	var (
		source      contracts.UniverseSource
		cachePrefix string
	)
	if len(tickers) > 0 {
		source = universe.NewStatic(tickers)
		cachePrefix = "alphalab:" + universe.SourceStatic + ":" + strings.Join(contracts.UniqueTickers(tickers), ",")
	} else {
		source = universe.NewSP500Scraper(httpClient, log, cfg.Fetch.UniverseURL)
		cachePrefix = "alphalab:" + universe.SourceSP500
	}

	var history contracts.HistorySource = marketdata.NewYahooClient(httpClient, log, cfg.Fetch.HistoryBaseURL)
	if rc.Enabled() {
		history = marketdata.NewCachedSource(history, redis.NewCache(rc, "alphalab"), cfg.Fetch.CacheTTL, log)
	}
	fetcher := marketdata.NewFetcher(history, cfg, log)

	// 4. Loader; the stored universe only tracks the S&P 500 source
	var store marketdata.Store
	if a.db != nil && len(tickers) == 0 {
		store = marketdata.NewPriceRepository(a.db.Pool)
	}
	var cache marketdata.Cache
	if rc.Enabled() {
		cache = marketdata.NewDatasetCache(redis.NewCache(rc, cachePrefix), cfg.Fetch.CacheTTL)
	} else {
		a.memory = marketdata.NewMemoryCache(cfg.Fetch.CacheTTL, log)
		cache = a.memory
	}
	a.loader = marketdata.NewLoader(source, fetcher, store, cache, log)

	// 5. Runner
	var runStore runner.RunStore
	if a.runs != nil {
		runStore = a.runs
	}
	a.runner = runner.New(strategy.Default(), a.loader, runStore, cfg.Simulation, log)

	return a, nil
}

func (a *app) close() {
	a.db.Close()
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close redis")
	}
}
