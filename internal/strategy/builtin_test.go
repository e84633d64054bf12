package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/alphalab/internal/backtest"
	"github.com/wonny/alphalab/internal/contracts"
)

var start = time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)

func trend(startPrice, rate float64, n int) []contracts.Bar {
	bars := make([]contracts.Bar, n)
	p := startPrice
	for i := range bars {
		bars[i] = contracts.Bar{Date: start.AddDate(0, 0, i), Open: p, High: p, Low: p, Close: p, Volume: 1}
		p *= 1 + rate
	}
	return bars
}

func simulate(t *testing.T, s backtest.Strategy, days int, bars map[string][]contracts.Bar) *backtest.Result {
	t.Helper()
	instruments := make([]string, 0, len(bars))
	for _, inst := range []string{"UP", "DOWN", "SPIKE"} {
		if _, ok := bars[inst]; ok {
			instruments = append(instruments, inst)
		}
	}
	sim, err := backtest.NewSimulator(backtest.Config{
		Instruments: instruments,
		Bars:        bars,
		Start:       start,
		End:         start.AddDate(0, 0, days-1),
	}, s, nil)
	require.NoError(t, err)
	result, err := sim.Run()
	require.NoError(t, err)
	return result
}

func TestEqualWeight(t *testing.T) {
	s, err := NewEqualWeight(nil)
	require.NoError(t, err)

	forecasts, chips, err := s.ComputeSignalDistribution([]string{"A", "B", "C"}, start)
	require.NoError(t, err)
	assert.Equal(t, backtest.Forecasts{"A": 1, "B": 1, "C": 1}, forecasts)
	assert.Equal(t, 3.0, chips)

	forecasts, chips, err = s.ComputeSignalDistribution(nil, start)
	require.NoError(t, err)
	assert.Empty(t, forecasts)
	assert.Zero(t, chips)
}

func TestMomentumFollowsTrend(t *testing.T) {
	s, err := NewMomentum(Params{"lookback": 3})
	require.NoError(t, err)

	result := simulate(t, s, 15, map[string][]contracts.Bar{
		"UP":   trend(100, 0.01, 15),
		"DOWN": trend(100, -0.01, 15),
	})

	last, ok := result.Ledger.Last()
	require.True(t, ok)
	assert.Greater(t, last.Units("UP"), 0.0)
	assert.Less(t, last.Units("DOWN"), 0.0)
	assert.InDelta(t, 0.5, last.Weight("UP"), 1e-9)
	assert.InDelta(t, -0.5, last.Weight("DOWN"), 1e-9)

	// both legs profit
	assert.Greater(t, last.Capital, backtest.DefaultInitialCapital)
}

func TestMomentumNeedsLookbackHistory(t *testing.T) {
	s, err := NewMomentum(Params{"lookback": 10})
	require.NoError(t, err)

	result := simulate(t, s, 12, map[string][]contracts.Bar{"UP": trend(100, 0.01, 12)})
	for i, row := range result.Ledger.Rows {
		if i < 10 {
			assert.Zero(t, row.Units("UP"), "row %d", i)
		}
	}
	assert.Greater(t, result.Ledger.Rows[10].Units("UP"), 0.0)
}

func TestMomentumRejectsDateOutsideCalendar(t *testing.T) {
	s, err := NewMomentum(nil)
	require.NoError(t, err)
	_, _, err = s.ComputeSignalDistribution([]string{"UP"}, start)
	assert.Error(t, err, "not computed yet")

	simulate(t, s, 6, map[string][]contracts.Bar{"UP": trend(100, 0.01, 6)})
	_, _, err = s.ComputeSignalDistribution([]string{"UP"}, start.AddDate(1, 0, 0))
	assert.Error(t, err)
}

func TestMeanReversionFadesSpike(t *testing.T) {
	s, err := NewMeanReversion(Params{"window": 5, "cap": 1.5})
	require.NoError(t, err)

	bars := []contracts.Bar{}
	for i, c := range []float64{10, 10.1, 9.9, 10, 10.1, 9.9, 10, 14} {
		bars = append(bars, contracts.Bar{Date: start.AddDate(0, 0, i), Close: c, Open: c, High: c, Low: c})
	}
	result := simulate(t, s, len(bars), map[string][]contracts.Bar{"SPIKE": bars})

	mr := s.(*MeanReversion)
	forecasts, chips, err := mr.ComputeSignalDistribution([]string{"SPIKE"}, start.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.InDelta(t, -1.5, forecasts["SPIKE"], 1e-12, "clipped at cap")
	assert.InDelta(t, 1.5, chips, 1e-12)

	last, _ := result.Ledger.Last()
	assert.Less(t, last.Units("SPIKE"), 0.0)
}

func TestMeanReversionParams(t *testing.T) {
	_, err := NewMeanReversion(Params{"window": 1})
	assert.Error(t, err)
	_, err = NewMeanReversion(Params{"cap": 0})
	assert.Error(t, err)
}
