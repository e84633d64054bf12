package strategyconfig

import (
	"fmt"
	"math"
)

// Universe sources
const (
	SourceSP500  = "sp500"
	SourceStatic = "static"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Strategy ===
	if cfg.Strategy.Name == "" {
		return ValidationError{"strategy.name", "required"}
	}
	for k, v := range cfg.Strategy.Params {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ValidationError{"strategy.params." + k, "must be finite"}
		}
	}

	// === Period ===
	start, err := cfg.Period.Start()
	if err != nil {
		return ValidationError{"period.from", "must be YYYY-MM-DD"}
	}
	end, err := cfg.Period.End()
	if err != nil {
		return ValidationError{"period.to", "must be YYYY-MM-DD"}
	}
	if end.Before(start) {
		return ValidationError{"period", "to must not be before from"}
	}

	// === Simulation ===
	if cfg.Simulation.InitialCapital < 0 || math.IsNaN(cfg.Simulation.InitialCapital) ||
		math.IsInf(cfg.Simulation.InitialCapital, 0) {
		return ValidationError{"simulation.initial_capital", "must be >= 0"}
	}
	if cfg.Simulation.EligibilityWindow < 0 {
		return ValidationError{"simulation.eligibility_window", "must be >= 0"}
	}

	// === Universe ===
	switch cfg.Universe.Source {
	case "", SourceSP500:
	case SourceStatic:
		if len(cfg.Universe.Tickers) == 0 {
			return ValidationError{"universe.tickers", "required for static source"}
		}
	default:
		return ValidationError{"universe.source", fmt.Sprintf("unknown source %q", cfg.Universe.Source)}
	}
	if cfg.Universe.Limit < 0 {
		return ValidationError{"universe.limit", "must be >= 0"}
	}

	return nil
}

// Warn returns soft warnings (권장사항 위반)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	start, errStart := cfg.Period.Start()
	end, errEnd := cfg.Period.End()
	window := cfg.Simulation.EligibilityWindow
	if window == 0 {
		window = 5
	}
	if errStart == nil && errEnd == nil {
		days := int(end.Sub(start).Hours()/24) + 1
		if days < window {
			warnings = append(warnings, Warning{
				Code:    "PERIOD_SHORTER_THAN_WINDOW",
				Message: fmt.Sprintf("period has %d days; nothing is eligible before %d", days, window),
			})
		}
	}

	if cfg.Universe.Source == SourceStatic && cfg.Universe.Limit > 0 && cfg.Universe.Limit < len(cfg.Universe.Tickers) {
		warnings = append(warnings, Warning{
			Code:    "LIMIT_TRUNCATES_TICKERS",
			Message: fmt.Sprintf("limit %d drops %d listed tickers", cfg.Universe.Limit, len(cfg.Universe.Tickers)-cfg.Universe.Limit),
		})
	}

	if cfg.Output.Save && cfg.Meta.Version == "" {
		warnings = append(warnings, Warning{
			Code:    "UNVERSIONED_SAVED_RUN",
			Message: "saved runs without meta.version are hard to trace",
		})
	}

	return warnings
}
