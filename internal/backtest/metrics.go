package backtest

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/alphalab/internal/risk"
)

// PeriodsPerYear annualizes daily ledger statistics. The simulation calendar contains
// every calendar day, weekends included.
const PeriodsPerYear = 365.0

// Summary holds performance statistics derived from a ledger
type Summary struct {
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	Days            int       `json:"days"`
	ActiveDays      int       `json:"active_days"` // days with nonzero exposure
	InitialCapital  float64   `json:"initial_capital"`
	FinalCapital    float64   `json:"final_capital"`
	TotalPnL        float64   `json:"total_pnl"`
	TotalReturn     float64   `json:"total_return"`
	CAGR            float64   `json:"cagr"`
	Volatility      float64   `json:"volatility"`
	SharpeRatio     float64   `json:"sharpe_ratio"`
	SortinoRatio    float64   `json:"sortino_ratio"`
	MaxDrawdown     float64   `json:"max_drawdown"`
	AverageLeverage float64   `json:"average_leverage"`
	MaxLeverage     float64   `json:"max_leverage"`
	VaR95           float64   `json:"var_95"`  // one-day historical VaR of capital
	CVaR95          float64   `json:"cvar_95"` // one-day historical expected shortfall
	ParametricVaR95 float64   `json:"parametric_var_95"`
}

// Summarize computes performance metrics from the capital curve of a ledger
func Summarize(l *Ledger) Summary {
	s := Summary{
		InitialCapital: l.InitialCapital,
		FinalCapital:   l.FinalCapital(),
	}
	if len(l.Rows) == 0 {
		return s
	}

	s.StartDate = l.Rows[0].Date
	s.EndDate = l.Rows[len(l.Rows)-1].Date
	s.Days = len(l.Rows)
	s.TotalPnL = s.FinalCapital - s.InitialCapital
	if s.InitialCapital != 0 {
		s.TotalReturn = s.TotalPnL / s.InitialCapital
	}

	leverageSum := 0.0
	for _, r := range l.Rows {
		if r.Nominal != 0 {
			s.ActiveDays++
		}
		leverageSum += r.Leverage
		if r.Leverage > s.MaxLeverage {
			s.MaxLeverage = r.Leverage
		}
	}
	s.AverageLeverage = leverageSum / float64(len(l.Rows))

	years := float64(len(l.Rows)-1) / PeriodsPerYear
	if years > 0 && s.InitialCapital > 0 && s.FinalCapital > 0 {
		s.CAGR = math.Pow(s.FinalCapital/s.InitialCapital, 1.0/years) - 1.0
	}

	daily := dailyReturns(l.Rows)
	meanDaily := mean(daily)

	s.Volatility = stddev(daily) * math.Sqrt(PeriodsPerYear)
	if s.Volatility > 0 {
		s.SharpeRatio = meanDaily * PeriodsPerYear / s.Volatility
	}

	downside := make([]float64, 0, len(daily))
	for _, r := range daily {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if dd := stddev(downside) * math.Sqrt(PeriodsPerYear); dd > 0 {
		s.SortinoRatio = meanDaily * PeriodsPerYear / dd
	}

	tail := risk.Historical(daily, 0.95)
	s.VaR95 = tail.VaR
	s.CVaR95 = tail.CVaR
	s.ParametricVaR95 = risk.Parametric(meanDaily, stddev(daily), 0.95).VaR

	s.MaxDrawdown = maxDrawdown(l.Rows)
	return s
}

// dailyReturns returns capital[i]/capital[i-1]-1, skipping days with no prior capital
func dailyReturns(rows []Row) []float64 {
	out := make([]float64, 0, len(rows))
	for i := 1; i < len(rows); i++ {
		prev := rows[i-1].Capital
		if prev == 0 {
			continue
		}
		out = append(out, rows[i].Capital/prev-1)
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// stddev is the population standard deviation
func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.PopStdDev(xs, nil)
}

// maxDrawdown is the largest peak-to-trough fall of capital, as a fraction of the peak
func maxDrawdown(rows []Row) float64 {
	if len(rows) == 0 {
		return 0
	}

	worst := 0.0
	peak := rows[0].Capital
	for _, r := range rows {
		if r.Capital > peak {
			peak = r.Capital
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - r.Capital) / peak; dd > worst {
			worst = dd
		}
	}
	return worst
}
