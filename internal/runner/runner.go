// Package runner wires dataset loading, strategy construction, simulation and
// run persistence into a single backtest request
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/alphalab/internal/backtest"
	"github.com/wonny/alphalab/internal/marketdata"
	"github.com/wonny/alphalab/internal/strategy"
	"github.com/wonny/alphalab/internal/strategyconfig"
	"github.com/wonny/alphalab/pkg/config"
	"github.com/wonny/alphalab/pkg/logger"
)

// ErrStoreUnavailable is returned when a run should be saved but no store is configured
var ErrStoreUnavailable = errors.New("run store not configured")

// DatasetLoader provides the instrument histories for a window
type DatasetLoader interface {
	Load(ctx context.Context, start, end time.Time, limit int) (*marketdata.Dataset, error)
}

// RunStore persists completed simulations
type RunStore interface {
	Save(ctx context.Context, result *backtest.Result, configHash string) (uuid.UUID, error)
}

// Request describes one backtest
type Request struct {
	Strategy          string          `json:"strategy"`
	Params            strategy.Params `json:"params,omitempty"`
	Start             time.Time       `json:"start"`
	End               time.Time       `json:"end"`
	InitialCapital    float64         `json:"initial_capital,omitempty"`
	EligibilityWindow int             `json:"eligibility_window,omitempty"`
	Limit             int             `json:"limit,omitempty"`
	Tickers           []string        `json:"tickers,omitempty"` // subset of the dataset when set
	Save              bool            `json:"save,omitempty"`
	ConfigHash        string          `json:"config_hash,omitempty"`
}

// Response is a completed backtest
type Response struct {
	RunID  uuid.UUID        `json:"run_id"` // uuid.Nil unless saved
	Result *backtest.Result `json:"-"`
}

// Runner executes backtest requests
// ⭐ SSOT: 데이터 로드 → 전략 생성 → 시뮬레이션 → 저장 순서는 여기서만
type Runner struct {
	registry *strategy.Registry
	loader   DatasetLoader
	store    RunStore // optional
	defaults config.SimulationConfig
	logger   *logger.Logger
}

// New creates a runner; store may be nil
func New(registry *strategy.Registry, loader DatasetLoader, store RunStore, defaults config.SimulationConfig, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{
		registry: registry,
		loader:   loader,
		store:    store,
		defaults: defaults,
		logger:   log,
	}
}

// Strategies lists the registered strategy names
func (r *Runner) Strategies() []string {
	return r.registry.Names()
}

// Run loads the dataset, builds the strategy and simulates it
func (r *Runner) Run(ctx context.Context, req Request) (*Response, error) {
	if req.Save && r.store == nil {
		return nil, ErrStoreUnavailable
	}

	strat, err := r.registry.New(req.Strategy, req.Params)
	if err != nil {
		return nil, err
	}

	ds, err := r.loader.Load(ctx, req.Start, req.End, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	if len(req.Tickers) > 0 {
		ds = ds.Subset(req.Tickers)
	}
	if ds.Len() == 0 {
		return nil, backtest.ErrNoInstruments
	}

	cfg := backtest.Config{
		Instruments:       ds.Tickers,
		Bars:              ds.Bars,
		Start:             req.Start,
		End:               req.End,
		InitialCapital:    req.InitialCapital,
		EligibilityWindow: req.EligibilityWindow,
	}
	if cfg.InitialCapital == 0 {
		cfg.InitialCapital = r.defaults.InitialCapital
	}
	if cfg.EligibilityWindow == 0 {
		cfg.EligibilityWindow = r.defaults.EligibilityWindow
	}

	sim, err := backtest.NewSimulator(cfg, strat, r.logger)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := sim.Run()
	if err != nil {
		return nil, err
	}

	resp := &Response{Result: result}
	if req.Save {
		runID, err := r.store.Save(ctx, result, req.ConfigHash)
		if err != nil {
			return nil, fmt.Errorf("save run: %w", err)
		}
		resp.RunID = runID
		r.logger.WithFields(map[string]interface{}{
			"run_id":   runID.String(),
			"strategy": result.Strategy,
		}).Info("Run saved")
	}

	return resp, nil
}

// RequestFromConfig turns a validated run file into a request
func RequestFromConfig(cfg *strategyconfig.Config) (Request, error) {
	start, err := cfg.Period.Start()
	if err != nil {
		return Request{}, fmt.Errorf("period.from: %w", err)
	}
	end, err := cfg.Period.End()
	if err != nil {
		return Request{}, fmt.Errorf("period.to: %w", err)
	}
	hash, err := strategyconfig.Hash(cfg)
	if err != nil {
		return Request{}, fmt.Errorf("hash config: %w", err)
	}

	req := Request{
		Strategy:          cfg.Strategy.Name,
		Params:            strategy.Params(cfg.Strategy.Params),
		Start:             start,
		End:               end,
		InitialCapital:    cfg.Simulation.InitialCapital,
		EligibilityWindow: cfg.Simulation.EligibilityWindow,
		Limit:             cfg.Universe.Limit,
		Save:              cfg.Output.Save,
		ConfigHash:        hash,
	}
	if cfg.Universe.Source == strategyconfig.SourceStatic {
		req.Tickers = cfg.Universe.Tickers
	}
	return req, nil
}
