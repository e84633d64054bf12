package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/alphalab/internal/contracts"
	"github.com/wonny/alphalab/pkg/logger"
)

// Store is the persistent dataset store
type Store interface {
	LoadDataset(ctx context.Context, start, end time.Time) (*Dataset, error)
	SaveDataset(ctx context.Context, ds *Dataset) error
}

// Cache is the fast dataset cache
type Cache interface {
	Get(ctx context.Context, start, end time.Time, limit int) (*Dataset, bool, error)
	Set(ctx context.Context, ds *Dataset, limit int) error
}

// Loader builds the simulation dataset: cache first, then store, then the network
// ⭐ SSOT: 데이터셋 조회 순서 (redis → postgres → 네트워크) 는 여기서만
type Loader struct {
	universe contracts.UniverseSource
	fetcher  *Fetcher
	store    Store // optional
	cache    Cache // optional
	logger   *logger.Logger
}

// NewLoader creates a loader; store and cache may be nil
func NewLoader(universe contracts.UniverseSource, fetcher *Fetcher, store Store, cache Cache, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.Nop()
	}
	return &Loader{
		universe: universe,
		fetcher:  fetcher,
		store:    store,
		cache:    cache,
		logger:   log.Component("loader"),
	}
}

// Load returns the first limit tickers with data over [start, end]; limit <= 0 keeps all
func (l *Loader) Load(ctx context.Context, start, end time.Time, limit int) (*Dataset, error) {
	if l.cache != nil {
		ds, ok, err := l.cache.Get(ctx, start, end, limit)
		if err != nil {
			l.logger.WithError(err).Warn("Dataset cache read failed")
		} else if ok {
			l.logger.WithField("tickers", ds.Len()).Debug("Dataset served from cache")
			return ds, nil
		}
	}

	if l.store != nil {
		ds, err := l.store.LoadDataset(ctx, start, end)
		if err != nil {
			l.logger.WithError(err).Warn("Dataset store read failed")
		} else if ds.Len() > 0 {
			ds = ds.Truncate(limit)
			l.logger.WithField("tickers", ds.Len()).Debug("Dataset served from store")
			l.writeCache(ctx, ds, limit)
			return ds, nil
		}
	}

	return l.Refresh(ctx, start, end, limit)
}

// Refresh always goes to the network, then writes the result back to store and cache
func (l *Loader) Refresh(ctx context.Context, start, end time.Time, limit int) (*Dataset, error) {
	tickers, err := l.universe.Tickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}

	ds, err := l.fetcher.Histories(ctx, tickers, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch histories: %w", err)
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("no ticker returned price history for %s..%s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	if l.store != nil {
		if err := l.store.SaveDataset(ctx, ds); err != nil {
			l.logger.WithError(err).Warn("Dataset store write failed")
		}
	}

	ds = ds.Truncate(limit)
	l.writeCache(ctx, ds, limit)
	return ds, nil
}

func (l *Loader) writeCache(ctx context.Context, ds *Dataset, limit int) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Set(ctx, ds, limit); err != nil {
		l.logger.WithError(err).Warn("Dataset cache write failed")
	}
}
