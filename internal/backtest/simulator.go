package backtest

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/wonny/alphalab/internal/contracts"
	"github.com/wonny/alphalab/pkg/logger"
)

var (
	ErrNoInstruments   = errors.New("no instruments")
	ErrEmptyCalendar   = errors.New("empty calendar")
	ErrMissingForecast = errors.New("missing forecast for eligible instrument")
	ErrInvalidForecast = errors.New("forecast is not a finite number")
	ErrNilStrategy     = errors.New("strategy is nil")
)

// progressEvery controls how often the loop emits a progress line
const progressEvery = 100

// Config describes one simulation
type Config struct {
	Instruments       []string
	Bars              map[string][]contracts.Bar
	Start             time.Time
	End               time.Time
	InitialCapital    float64 // DefaultInitialCapital when zero
	EligibilityWindow int     // DefaultEligibilityWindow when zero
}

// Result is a completed simulation
type Result struct {
	Strategy string
	Market   *Market
	Ledger   *Ledger
	Summary  Summary
	Duration time.Duration
}

// Simulator drives the daily state machine for one strategy
// ⭐ SSOT: 백테스팅 일별 시뮬레이션은 여기서만
type Simulator struct {
	config   Config
	strategy Strategy
	logger   *logger.Logger
}

// NewSimulator validates cfg and takes an owned deep copy of its bars;
// later changes to the caller's data are not visible to the simulator
func NewSimulator(cfg Config, strategy Strategy, log *logger.Logger) (*Simulator, error) {
	if strategy == nil {
		return nil, ErrNilStrategy
	}

	instruments := contracts.UniqueTickers(cfg.Instruments)
	if len(instruments) == 0 {
		return nil, ErrNoInstruments
	}
	if _, err := Calendar(cfg.Start, cfg.End); err != nil {
		return nil, err
	}

	if cfg.InitialCapital == 0 {
		cfg.InitialCapital = DefaultInitialCapital
	}
	if cfg.EligibilityWindow == 0 {
		cfg.EligibilityWindow = DefaultEligibilityWindow
	}
	if cfg.InitialCapital < 0 || math.IsNaN(cfg.InitialCapital) || math.IsInf(cfg.InitialCapital, 0) {
		return nil, fmt.Errorf("invalid initial capital %v", cfg.InitialCapital)
	}
	if cfg.EligibilityWindow < 1 {
		return nil, fmt.Errorf("invalid eligibility window %d", cfg.EligibilityWindow)
	}

	cfg.Instruments = instruments
	cfg.Bars = cloneRaw(instruments, cfg.Bars)

	if log == nil {
		log = logger.Nop()
	}

	return &Simulator{
		config:   cfg,
		strategy: strategy,
		logger:   log.Component("backtest"),
	}, nil
}

// Run simulates every calendar date in order and returns the completed ledger.
// Any failure aborts the run; no partial ledger is returned.
func (s *Simulator) Run() (*Result, error) {
	startTime := time.Now()
	name := s.strategy.Name()

	calendar, err := Calendar(s.config.Start, s.config.End)
	if err != nil {
		return nil, err
	}

	// each run works on its own copy so hooks cannot leak state between runs
	market := newMarket(s.config.Instruments, calendar, cloneRaw(s.config.Instruments, s.config.Bars))

	s.logger.WithFields(map[string]interface{}{
		"strategy":    name,
		"start_date":  market.Start.Format("2006-01-02"),
		"end_date":    market.End.Format("2006-01-02"),
		"instruments": len(market.Instruments),
		"days":        len(calendar),
	}).Info("Starting simulation")

	if err := s.strategy.PreCompute(market); err != nil {
		return nil, fmt.Errorf("pre compute: %w", err)
	}
	market.prepare(s.config.EligibilityWindow)
	if err := s.strategy.PostCompute(market); err != nil {
		return nil, fmt.Errorf("post compute: %w", err)
	}

	ledger := NewLedger(market.Instruments, calendar, s.config.InitialCapital)

	for i, date := range calendar {
		row, err := s.step(market, ledger, i)
		if err != nil {
			return nil, fmt.Errorf("simulate %s: %w", date.Format("2006-01-02"), err)
		}
		if err := ledger.commit(row); err != nil {
			return nil, err
		}

		if i%progressEvery == 0 {
			s.logger.WithFields(map[string]interface{}{
				"date":     date.Format("2006-01-02"),
				"capital":  row.Capital,
				"nominal":  row.Nominal,
				"leverage": row.Leverage,
			}).Debug("Simulation progress")
		}
	}

	result := &Result{
		Strategy: name,
		Market:   market,
		Ledger:   ledger,
		Summary:  Summarize(ledger),
		Duration: time.Since(startTime),
	}

	s.logger.WithFields(map[string]interface{}{
		"strategy":      name,
		"duration":      result.Duration.String(),
		"final_capital": result.Summary.FinalCapital,
		"total_return":  fmt.Sprintf("%.2f%%", result.Summary.TotalReturn*100),
		"sharpe_ratio":  fmt.Sprintf("%.2f", result.Summary.SharpeRatio),
		"max_drawdown":  fmt.Sprintf("%.2f%%", result.Summary.MaxDrawdown*100),
	}).Info("Simulation completed")

	return result, nil
}

// step builds row i from row i-1 and same-day market data only
func (s *Simulator) step(m *Market, ledger *Ledger, i int) (Row, error) {
	date := m.Calendar[i]
	row := ledger.nextRow()

	// 1. eligibility
	eligibles, nonEligibles := m.partition(i)

	// 2. mark yesterday's book
	if i > 0 {
		prev, _ := ledger.Last()
		AccountPnL(&row, prev, m)
	}

	// 3. flat book for non-eligible instruments
	for _, inst := range nonEligibles {
		row.Positions[inst] = Position{}
	}

	// 4. signals
	forecasts, forecastChips, err := s.strategy.ComputeSignalDistribution(eligibles, date)
	if err != nil {
		return Row{}, fmt.Errorf("compute signal distribution: %w", err)
	}
	if !isFinite(forecastChips) {
		return Row{}, fmt.Errorf("%w: forecast chips %v", ErrInvalidForecast, forecastChips)
	}

	// 5. sizing
	dollarAllocation := 0.0
	if forecastChips != 0 {
		dollarAllocation = row.Capital / forecastChips
	}

	nominalTot := 0.0
	for _, inst := range eligibles {
		forecast, ok := forecasts[inst]
		if !ok {
			return Row{}, fmt.Errorf("%w: %s", ErrMissingForecast, inst)
		}
		if !isFinite(forecast) {
			return Row{}, fmt.Errorf("%w: %s=%v", ErrInvalidForecast, inst, forecast)
		}

		closePrice := m.Close(inst, i)
		units := forecast * dollarAllocation / closePrice
		row.Positions[inst] = Position{Units: units}
		nominalTot += math.Abs(units * closePrice)
	}

	// 6. weights; a flat book has zero weights
	for _, inst := range eligibles {
		pos := row.Positions[inst]
		if nominalTot != 0 {
			pos.Weight = pos.Units * m.Close(inst, i) / nominalTot
		}
		row.Positions[inst] = pos
	}

	// 7. exposure
	row.Nominal = nominalTot
	if row.Capital != 0 {
		row.Leverage = nominalTot / row.Capital
	}

	return row, nil
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
