package backtest

import (
	"time"

	"github.com/wonny/alphalab/internal/contracts"
)

var day0 = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func dayN(n int) time.Time {
	return day0.AddDate(0, 0, n)
}

// barsFromCloses builds one bar per consecutive day starting at day0
func barsFromCloses(closes ...float64) []contracts.Bar {
	bars := make([]contracts.Bar, len(closes))
	for i, c := range closes {
		bars[i] = contracts.Bar{Date: dayN(i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return bars
}

// geometric returns n closes starting at start and compounding by rate per day
func geometric(start, rate float64, n int) []float64 {
	out := make([]float64, n)
	p := start
	for i := range out {
		out[i] = p
		p *= 1 + rate
	}
	return out
}

// fixedStrategy assigns the same forecast to every eligible instrument
type fixedStrategy struct {
	Base
	forecast float64
	chips    func(date time.Time, eligibles []string) float64
	calls    int
}

func (s *fixedStrategy) Name() string { return "fixed" }

func (s *fixedStrategy) ComputeSignalDistribution(eligibles []string, date time.Time) (Forecasts, float64, error) {
	s.calls++
	forecasts := make(Forecasts, len(eligibles))
	for _, inst := range eligibles {
		forecasts[inst] = s.forecast
	}
	chips := float64(len(eligibles))
	if s.chips != nil {
		chips = s.chips(date, eligibles)
	}
	return forecasts, chips, nil
}

// stubStrategy returns canned outputs
type stubStrategy struct {
	Base
	forecasts Forecasts
	chips     float64
	err       error
}

func (s stubStrategy) ComputeSignalDistribution([]string, time.Time) (Forecasts, float64, error) {
	return s.forecasts, s.chips, s.err
}
