package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wonny/alphalab/internal/backtest"
	"github.com/wonny/alphalab/internal/runner"
	"github.com/wonny/alphalab/internal/strategy"
	"github.com/wonny/alphalab/pkg/logger"
)

// Backtester runs simulations
type Backtester interface {
	Run(ctx context.Context, req runner.Request) (*runner.Response, error)
	Strategies() []string
}

// RunReader reads stored runs
type RunReader interface {
	Get(ctx context.Context, runID uuid.UUID) (*backtest.RunRecord, error)
	List(ctx context.Context, limit int) ([]*backtest.RunRecord, error)
	LedgerRows(ctx context.Context, runID uuid.UUID) ([]backtest.Row, error)
}

// SimulationHandler handles backtest API endpoints
// ⭐ SSOT: 시뮬레이션 API 핸들러는 이 구조체에서만
type SimulationHandler struct {
	backtester Backtester
	runs       RunReader // optional
	logger     *logger.Logger
}

// NewSimulationHandler creates a new simulation handler; runs may be nil
func NewSimulationHandler(backtester Backtester, runs RunReader, log *logger.Logger) *SimulationHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &SimulationHandler{
		backtester: backtester,
		runs:       runs,
		logger:     log,
	}
}

// ListStrategies returns the registered strategy names
// GET /api/strategies
func (h *SimulationHandler) ListStrategies(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"strategies": h.backtester.Strategies(),
	})
}

// SimulationRequest represents a simulation request
type SimulationRequest struct {
	Strategy          string             `json:"strategy"`
	From              string             `json:"from"` // YYYY-MM-DD
	To                string             `json:"to"`   // YYYY-MM-DD
	Params            map[string]float64 `json:"params,omitempty"`
	InitialCapital    float64            `json:"initial_capital,omitempty"`
	EligibilityWindow int                `json:"eligibility_window,omitempty"`
	Limit             int                `json:"limit,omitempty"`
	Tickers           []string           `json:"tickers,omitempty"`
	Save              bool               `json:"save,omitempty"`
	IncludeLedger     bool               `json:"include_ledger,omitempty"`
}

// SimulationResponse represents a completed simulation
type SimulationResponse struct {
	RunID       string           `json:"run_id,omitempty"`
	Strategy    string           `json:"strategy"`
	Instruments []string         `json:"instruments"`
	Summary     backtest.Summary `json:"summary"`
	Ledger      []backtest.Row   `json:"ledger,omitempty"`
	DurationMS  int64            `json:"duration_ms"`
}

// Simulate runs a backtest synchronously
// POST /api/simulations
func (h *SimulationHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req SimulationRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Strategy == "" {
		respondError(w, http.StatusBadRequest, "'strategy' is required")
		return
	}
	from, err := time.Parse("2006-01-02", req.From)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'from' date format (expected YYYY-MM-DD)")
		return
	}
	to, err := time.Parse("2006-01-02", req.To)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'to' date format (expected YYYY-MM-DD)")
		return
	}

	resp, err := h.backtester.Run(r.Context(), runner.Request{
		Strategy:          req.Strategy,
		Params:            strategy.Params(req.Params),
		Start:             from,
		End:               to,
		InitialCapital:    req.InitialCapital,
		EligibilityWindow: req.EligibilityWindow,
		Limit:             req.Limit,
		Tickers:           req.Tickers,
		Save:              req.Save,
	})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.WithError(err).Error("Simulation failed")
		}
		respondError(w, status, err.Error())
		return
	}

	result := resp.Result
	out := SimulationResponse{
		Strategy:    result.Strategy,
		Instruments: result.Ledger.Instruments,
		Summary:     result.Summary,
		DurationMS:  result.Duration.Milliseconds(),
	}
	if resp.RunID != uuid.Nil {
		out.RunID = resp.RunID.String()
	}
	if req.IncludeLedger {
		out.Ledger = result.Ledger.Rows
	}

	respondJSON(w, http.StatusOK, out)
}

// ListRuns returns the most recent stored runs
// GET /api/runs?limit=N
func (h *SimulationHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, http.StatusServiceUnavailable, runner.ErrStoreUnavailable.Error())
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 500 {
			respondError(w, http.StatusBadRequest, "Invalid 'limit' (1-500)")
			return
		}
		limit = n
	}

	runs, err := h.runs.List(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []*backtest.RunRecord{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun returns a stored run header
// GET /api/runs/{id}
func (h *SimulationHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	rec, err := h.runs.Get(r.Context(), runID)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// GetRunLedger returns the stored ledger rows of a run
// GET /api/runs/{id}/ledger
func (h *SimulationHandler) GetRunLedger(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	if _, err := h.runs.Get(r.Context(), runID); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	rows, err := h.runs.LedgerRows(r.Context(), runID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load ledger")
		respondError(w, http.StatusInternalServerError, "Failed to load ledger")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID.String(),
		"rows":   rows,
	})
}

func (h *SimulationHandler) runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if h.runs == nil {
		respondError(w, http.StatusServiceUnavailable, runner.ErrStoreUnavailable.Error())
		return uuid.Nil, false
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid run id")
		return uuid.Nil, false
	}
	return id, true
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, strategy.ErrUnknownStrategy),
		errors.Is(err, backtest.ErrEmptyCalendar),
		errors.Is(err, backtest.ErrNoInstruments):
		return http.StatusBadRequest
	case errors.Is(err, backtest.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, runner.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, backtest.ErrNotImplemented),
		errors.Is(err, backtest.ErrMissingForecast),
		errors.Is(err, backtest.ErrInvalidForecast):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
