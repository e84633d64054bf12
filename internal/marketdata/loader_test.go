package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/alphalab/internal/universe"
)

type memStore struct {
	ds      *Dataset
	loadErr error
	saved   *Dataset
}

func (s *memStore) LoadDataset(context.Context, time.Time, time.Time) (*Dataset, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.ds == nil {
		return NewDataset(winStart, winEnd), nil
	}
	return s.ds, nil
}

func (s *memStore) SaveDataset(_ context.Context, ds *Dataset) error {
	s.saved = ds
	return nil
}

type memCache struct {
	entries map[int]*Dataset
	getErr  error
}

func newMemCache() *memCache { return &memCache{entries: map[int]*Dataset{}} }

func (c *memCache) Get(_ context.Context, _, _ time.Time, limit int) (*Dataset, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	ds, ok := c.entries[limit]
	return ds, ok, nil
}

func (c *memCache) Set(_ context.Context, ds *Dataset, limit int) error {
	c.entries[limit] = ds
	return nil
}

func networkFixture() (*fakeSource, *Fetcher) {
	src := newFakeSource()
	src.data["A"] = bars(1, 2)
	src.data["B"] = bars(3, 4)
	src.data["C"] = bars(5, 6)
	return src, NewFetcher(src, fetchConfig(1, 2), nil)
}

func TestLoaderServesFromCache(t *testing.T) {
	src, fetcher := networkFixture()
	cache := newMemCache()
	cached := sampleDataset()
	cache.entries[2] = cached

	l := NewLoader(universe.NewStatic([]string{"A", "B", "C"}), fetcher, &memStore{}, cache, nil)
	ds, err := l.Load(context.Background(), winStart, winEnd, 2)
	require.NoError(t, err)
	assert.Same(t, cached, ds)
	assert.Empty(t, src.calls, "network untouched")
}

func TestLoaderServesFromStore(t *testing.T) {
	src, fetcher := networkFixture()
	cache := newMemCache()
	store := &memStore{ds: sampleDataset()}

	l := NewLoader(universe.NewStatic([]string{"A"}), fetcher, store, cache, nil)
	ds, err := l.Load(context.Background(), winStart, winEnd, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ds.Tickers)
	assert.Empty(t, src.calls)
	assert.Same(t, ds, cache.entries[2], "store hit is written back to cache")
}

func TestLoaderFallsBackToNetwork(t *testing.T) {
	_, fetcher := networkFixture()
	cache := newMemCache()
	cache.getErr = errors.New("redis down")
	store := &memStore{loadErr: errors.New("pg down")}

	l := NewLoader(universe.NewStatic([]string{"C", "NONE", "A", "B"}), fetcher, store, cache, nil)
	ds, err := l.Load(context.Background(), winStart, winEnd, 2)
	require.NoError(t, err)

	// tickers with data, universe order, then truncated
	assert.Equal(t, []string{"C", "A"}, ds.Tickers)
	require.NotNil(t, store.saved)
	assert.Equal(t, []string{"C", "A", "B"}, store.saved.Tickers, "store keeps the full fetch")
}

func TestLoaderWithoutStoreOrCache(t *testing.T) {
	_, fetcher := networkFixture()
	l := NewLoader(universe.NewStatic([]string{"A", "B"}), fetcher, nil, nil, nil)

	ds, err := l.Load(context.Background(), winStart, winEnd, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ds.Tickers)
}

func TestLoaderNoData(t *testing.T) {
	_, fetcher := networkFixture()
	l := NewLoader(universe.NewStatic([]string{"X", "Y"}), fetcher, nil, nil, nil)

	_, err := l.Load(context.Background(), winStart, winEnd, 0)
	assert.Error(t, err)
}

func TestLoaderUniverseError(t *testing.T) {
	_, fetcher := networkFixture()
	l := NewLoader(universe.NewStatic(nil), fetcher, nil, nil, nil)

	_, err := l.Refresh(context.Background(), winStart, winEnd, 0)
	assert.True(t, errors.Is(err, universe.ErrNoTickers))
}
