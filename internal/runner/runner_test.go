package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/alphalab/internal/backtest"
	"github.com/wonny/alphalab/internal/contracts"
	"github.com/wonny/alphalab/internal/marketdata"
	"github.com/wonny/alphalab/internal/strategy"
	"github.com/wonny/alphalab/internal/strategyconfig"
	"github.com/wonny/alphalab/pkg/config"
)

var (
	start = time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	end   = start.AddDate(0, 0, 19)
)

type fakeLoader struct {
	ds    *marketdata.Dataset
	err   error
	limit int
}

func (l *fakeLoader) Load(_ context.Context, _, _ time.Time, limit int) (*marketdata.Dataset, error) {
	l.limit = limit
	if l.err != nil {
		return nil, l.err
	}
	return l.ds.Truncate(limit), nil
}

type fakeStore struct {
	saved *backtest.Result
	hash  string
	err   error
}

func (s *fakeStore) Save(_ context.Context, result *backtest.Result, hash string) (uuid.UUID, error) {
	if s.err != nil {
		return uuid.Nil, s.err
	}
	s.saved, s.hash = result, hash
	return uuid.New(), nil
}

func dataset() *marketdata.Dataset {
	ds := marketdata.NewDataset(start, end)
	for i, ticker := range []string{"AAA", "BBB", "CCC"} {
		bars := make([]contracts.Bar, 20)
		p := 10.0 * float64(i+1)
		for d := range bars {
			bars[d] = contracts.Bar{Date: start.AddDate(0, 0, d), Close: p}
			p *= 1.01
		}
		ds.Add(ticker, bars)
	}
	return ds
}

var defaults = config.SimulationConfig{InitialCapital: 5000, EligibilityWindow: 5}

func TestRunnerRun(t *testing.T) {
	loader := &fakeLoader{ds: dataset()}
	r := New(strategy.Default(), loader, nil, defaults, nil)

	resp, err := r.Run(context.Background(), Request{
		Strategy: strategy.EqualWeightName,
		Start:    start,
		End:      end,
		Limit:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, resp.RunID)
	assert.Equal(t, 2, loader.limit)
	assert.Equal(t, []string{"AAA", "BBB"}, resp.Result.Ledger.Instruments)
	assert.Equal(t, 5000.0, resp.Result.Ledger.InitialCapital)
	assert.Len(t, resp.Result.Ledger.Rows, 20)
}

func TestRunnerTickerSubset(t *testing.T) {
	r := New(strategy.Default(), &fakeLoader{ds: dataset()}, nil, defaults, nil)

	resp, err := r.Run(context.Background(), Request{
		Strategy:       strategy.MomentumName,
		Params:         strategy.Params{"lookback": 3},
		Start:          start,
		End:            end,
		Tickers:        []string{"CCC", "ZZZ"},
		InitialCapital: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"CCC"}, resp.Result.Ledger.Instruments)
	assert.Equal(t, 100.0, resp.Result.Ledger.InitialCapital)

	_, err = r.Run(context.Background(), Request{Strategy: strategy.EqualWeightName, Start: start, End: end, Tickers: []string{"ZZZ"}})
	assert.True(t, errors.Is(err, backtest.ErrNoInstruments))
}

func TestRunnerSave(t *testing.T) {
	store := &fakeStore{}
	r := New(strategy.Default(), &fakeLoader{ds: dataset()}, store, defaults, nil)

	resp, err := r.Run(context.Background(), Request{
		Strategy:   strategy.EqualWeightName,
		Start:      start,
		End:        end,
		Save:       true,
		ConfigHash: "abc",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, resp.RunID)
	assert.Same(t, resp.Result, store.saved)
	assert.Equal(t, "abc", store.hash)

	store.err = errors.New("pg down")
	_, err = r.Run(context.Background(), Request{Strategy: strategy.EqualWeightName, Start: start, End: end, Save: true})
	assert.Error(t, err)
}

func TestRunnerErrors(t *testing.T) {
	loaderErr := errors.New("network down")

	tests := []struct {
		name   string
		runner *Runner
		req    Request
		check  func(error) bool
	}{
		{
			name:   "save without store",
			runner: New(strategy.Default(), &fakeLoader{ds: dataset()}, nil, defaults, nil),
			req:    Request{Strategy: strategy.EqualWeightName, Start: start, End: end, Save: true},
			check:  func(err error) bool { return errors.Is(err, ErrStoreUnavailable) },
		},
		{
			name:   "unknown strategy",
			runner: New(strategy.Default(), &fakeLoader{ds: dataset()}, nil, defaults, nil),
			req:    Request{Strategy: "nope", Start: start, End: end},
			check:  func(err error) bool { return errors.Is(err, strategy.ErrUnknownStrategy) },
		},
		{
			name:   "loader failure",
			runner: New(strategy.Default(), &fakeLoader{err: loaderErr}, nil, defaults, nil),
			req:    Request{Strategy: strategy.EqualWeightName, Start: start, End: end},
			check:  func(err error) bool { return errors.Is(err, loaderErr) },
		},
		{
			name:   "reversed window",
			runner: New(strategy.Default(), &fakeLoader{ds: dataset()}, nil, defaults, nil),
			req:    Request{Strategy: strategy.EqualWeightName, Start: end, End: start},
			check:  func(err error) bool { return errors.Is(err, backtest.ErrEmptyCalendar) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.runner.Run(context.Background(), tt.req)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func TestRunnerCanceledContext(t *testing.T) {
	r := New(strategy.Default(), &fakeLoader{ds: dataset()}, nil, defaults, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, Request{Strategy: strategy.EqualWeightName, Start: start, End: end})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRequestFromConfig(t *testing.T) {
	cfg := &strategyconfig.Config{
		Strategy:   strategyconfig.Strategy{Name: "momentum", Params: map[string]float64{"lookback": 10}},
		Period:     strategyconfig.Period{From: "2020-01-01", To: "2020-06-30"},
		Simulation: strategyconfig.Simulation{InitialCapital: 2500, EligibilityWindow: 3},
		Universe:   strategyconfig.Universe{Source: strategyconfig.SourceStatic, Tickers: []string{"AAPL"}, Limit: 5},
		Output:     strategyconfig.Output{Save: true},
	}

	req, err := RequestFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "momentum", req.Strategy)
	assert.Equal(t, 10, req.Params.Int("lookback", 0))
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), req.Start)
	assert.Equal(t, time.Date(2020, 6, 30, 0, 0, 0, 0, time.UTC), req.End)
	assert.Equal(t, 2500.0, req.InitialCapital)
	assert.Equal(t, 3, req.EligibilityWindow)
	assert.Equal(t, 5, req.Limit)
	assert.Equal(t, []string{"AAPL"}, req.Tickers)
	assert.True(t, req.Save)
	assert.Len(t, req.ConfigHash, 64)

	cfg.Period.From = "bad"
	_, err = RequestFromConfig(cfg)
	assert.Error(t, err)
}
