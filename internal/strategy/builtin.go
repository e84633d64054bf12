package strategy

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/alphalab/internal/backtest"
)

const (
	EqualWeightName   = "equal_weight"
	MomentumName      = "momentum"
	MeanReversionName = "mean_reversion"
)

// EqualWeight goes long one unit of forecast in every eligible instrument
type EqualWeight struct {
	backtest.Base
}

// NewEqualWeight takes no parameters
func NewEqualWeight(Params) (backtest.Strategy, error) {
	return &EqualWeight{}, nil
}

func (s *EqualWeight) Name() string { return EqualWeightName }

func (s *EqualWeight) ComputeSignalDistribution(eligibles []string, _ time.Time) (backtest.Forecasts, float64, error) {
	forecasts := make(backtest.Forecasts, len(eligibles))
	for _, inst := range eligibles {
		forecasts[inst] = 1
	}
	return forecasts, float64(len(eligibles)), nil
}

// indicator holds one precomputed score per instrument per calendar row
type indicator struct {
	market *backtest.Market
	scores map[string][]float64
}

// distribute looks up today's scores. Instruments without a finite score get 0.
// forecast chips is the gross score so that |forecasts| sum to one unit of capital.
func (ind *indicator) distribute(eligibles []string, date time.Time) (backtest.Forecasts, float64, error) {
	if ind.market == nil {
		return nil, 0, fmt.Errorf("indicator not computed")
	}
	i, ok := ind.market.IndexOf(date)
	if !ok {
		return nil, 0, fmt.Errorf("date %s outside calendar", date.Format("2006-01-02"))
	}

	forecasts := make(backtest.Forecasts, len(eligibles))
	chips := 0.0
	for _, inst := range eligibles {
		score := ind.scores[inst][i]
		if math.IsNaN(score) || math.IsInf(score, 0) {
			score = 0
		}
		forecasts[inst] = score
		chips += math.Abs(score)
	}
	return forecasts, chips, nil
}

// Momentum follows the sign of the trailing lookback-day return
type Momentum struct {
	backtest.Base
	indicator
	lookback int
}

// NewMomentum reads "lookback" (days, default 20)
func NewMomentum(params Params) (backtest.Strategy, error) {
	lookback := params.Int("lookback", 20)
	if lookback < 1 {
		return nil, fmt.Errorf("lookback must be >= 1, got %d", lookback)
	}
	return &Momentum{lookback: lookback}, nil
}

func (s *Momentum) Name() string { return MomentumName }

// PostCompute precomputes the signal for every row once
func (s *Momentum) PostCompute(m *backtest.Market) error {
	s.market = m
	s.scores = make(map[string][]float64, len(m.Instruments))
	for _, inst := range m.Instruments {
		series := m.Series[inst]
		scores := make([]float64, len(series))
		for i := range series {
			if i < s.lookback {
				continue
			}
			change := series[i].Close/series[i-s.lookback].Close - 1
			scores[i] = sign(change)
		}
		s.scores[inst] = scores
	}
	return nil
}

func (s *Momentum) ComputeSignalDistribution(eligibles []string, date time.Time) (backtest.Forecasts, float64, error) {
	return s.distribute(eligibles, date)
}

// MeanReversion bets against the z-score of close versus its trailing mean
type MeanReversion struct {
	backtest.Base
	indicator
	window int
	cap    float64
}

// NewMeanReversion reads "window" (days, default 20) and "cap" (z-score clip, default 2)
func NewMeanReversion(params Params) (backtest.Strategy, error) {
	window := params.Int("window", 20)
	if window < 2 {
		return nil, fmt.Errorf("window must be >= 2, got %d", window)
	}
	zcap := params.Get("cap", 2)
	if zcap <= 0 {
		return nil, fmt.Errorf("cap must be > 0, got %v", zcap)
	}
	return &MeanReversion{window: window, cap: zcap}, nil
}

func (s *MeanReversion) Name() string { return MeanReversionName }

// PostCompute precomputes the clipped negative z-score for every row once
func (s *MeanReversion) PostCompute(m *backtest.Market) error {
	s.market = m
	s.scores = make(map[string][]float64, len(m.Instruments))
	for _, inst := range m.Instruments {
		series := m.Series[inst]
		scores := make([]float64, len(series))
		for i := range series {
			if i < s.window-1 {
				continue
			}
			closes := make([]float64, s.window)
			for k := range closes {
				closes[k] = series[i-s.window+1+k].Close
			}
			mu, sd := stat.PopMeanStdDev(closes, nil)
			if sd == 0 {
				continue
			}
			z := (series[i].Close - mu) / sd
			scores[i] = -math.Max(-s.cap, math.Min(s.cap, z))
		}
		s.scores[inst] = scores
	}
	return nil
}

func (s *MeanReversion) ComputeSignalDistribution(eligibles []string, date time.Time) (backtest.Forecasts, float64, error) {
	return s.distribute(eligibles, date)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
