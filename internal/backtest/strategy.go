package backtest

import (
	"errors"
	"time"
)

// ErrNotImplemented is returned when the signal contract is invoked on Base
var ErrNotImplemented = errors.New("no concrete implementation for signal generation")

// Forecasts maps each eligible instrument to a signed score
type Forecasts map[string]float64

// Strategy turns the eligible instruments of a date into forecasts.
//
// forecastChips is the normalization denominator: each unit of forecast is allotted
// capital/forecastChips dollars. A zero denominator allocates nothing that day.
// Strategies keep no ledger state. PreCompute runs before series are prepared (only
// Market.Raw is set) and PostCompute right after, letting a strategy precompute
// cross-sectional indicators once instead of per day.
// ⭐ SSOT: 전략 인터페이스는 여기서만 정의
type Strategy interface {
	Name() string
	PreCompute(m *Market) error
	PostCompute(m *Market) error
	ComputeSignalDistribution(eligibles []string, date time.Time) (forecasts Forecasts, forecastChips float64, err error)
}

// Base gives concrete strategies no-op hooks. Embed it and override
// ComputeSignalDistribution; the embedded default fails with ErrNotImplemented.
type Base struct{}

// Name returns a placeholder; concrete strategies override it
func (Base) Name() string { return "base" }

// PreCompute is a no-op
func (Base) PreCompute(*Market) error { return nil }

// PostCompute is a no-op
func (Base) PostCompute(*Market) error { return nil }

// ComputeSignalDistribution has no viable default
func (Base) ComputeSignalDistribution([]string, time.Time) (Forecasts, float64, error) {
	return nil, 0, ErrNotImplemented
}
