// Package risk measures the loss tail of a daily return series
package risk

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DefaultConfidence is used when a confidence outside (0, 1) is given
const DefaultConfidence = 0.95

// TailRisk is the one-day loss tail at a confidence level.
// VaR and CVaR are losses expressed as positive fractions; no loss is 0.
type TailRisk struct {
	Confidence float64 `json:"confidence"`
	VaR        float64 `json:"var"`
	CVaR       float64 `json:"cvar"` // expected shortfall beyond VaR
}

// Historical computes VaR and CVaR from the empirical distribution of returns
func Historical(returns []float64, confidence float64) TailRisk {
	confidence = normalizeConfidence(confidence)
	if len(returns) == 0 {
		return TailRisk{Confidence: confidence}
	}

	// 오름차순: 손실이 앞에
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(math.Floor((1 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	tail := stat.Mean(sorted[:idx+1], nil)

	return TailRisk{
		Confidence: confidence,
		VaR:        loss(sorted[idx]),
		CVaR:       loss(tail),
	}
}

// Parametric computes VaR and CVaR assuming normally distributed returns
func Parametric(mean, stdDev, confidence float64) TailRisk {
	confidence = normalizeConfidence(confidence)
	z := NormInv(confidence)

	return TailRisk{
		Confidence: confidence,
		VaR:        loss(mean - z*stdDev),
		CVaR:       loss(mean - stdDev*NormPDF(z)/(1-confidence)),
	}
}

// NormInv is the standard normal quantile function
func NormInv(p float64) float64 {
	if p <= 0 || p >= 1 {
		return math.NaN()
	}
	return math.Sqrt2 * math.Erfinv(2*p-1)
}

// NormPDF is the standard normal density
func NormPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}

func normalizeConfidence(c float64) float64 {
	if c <= 0 || c >= 1 || math.IsNaN(c) {
		return DefaultConfidence
	}
	return c
}

func loss(r float64) float64 {
	if r < 0 {
		return -r
	}
	return 0
}
