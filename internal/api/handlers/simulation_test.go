package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/alphalab/internal/backtest"
	"github.com/wonny/alphalab/internal/runner"
	"github.com/wonny/alphalab/internal/strategy"
)

type fakeBacktester struct {
	req   runner.Request
	resp  *runner.Response
	err   error
	names []string
}

func (f *fakeBacktester) Run(_ context.Context, req runner.Request) (*runner.Response, error) {
	f.req = req
	return f.resp, f.err
}

func (f *fakeBacktester) Strategies() []string { return f.names }

type fakeRuns struct {
	records map[uuid.UUID]*backtest.RunRecord
	rows    []backtest.Row
}

func (f *fakeRuns) Get(_ context.Context, id uuid.UUID) (*backtest.RunRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, fmt.Errorf("get run %s: %w", id, backtest.ErrRunNotFound)
	}
	return rec, nil
}

func (f *fakeRuns) List(_ context.Context, limit int) ([]*backtest.RunRecord, error) {
	out := make([]*backtest.RunRecord, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, rec)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRuns) LedgerRows(_ context.Context, _ uuid.UUID) ([]backtest.Row, error) {
	return f.rows, nil
}

func sampleResult() *backtest.Result {
	day := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	ledger := backtest.NewLedger([]string{"AAA"}, []time.Time{day}, 10000)
	ledger.Rows = append(ledger.Rows, backtest.Row{Date: day, Capital: 10000, Positions: map[string]backtest.Position{}})
	return &backtest.Result{
		Strategy: "equal_weight",
		Ledger:   ledger,
		Summary:  backtest.Summarize(ledger),
		Duration: 3 * time.Millisecond,
	}
}

func newTestRouter(h *SimulationHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/strategies", h.ListStrategies).Methods("GET")
	r.HandleFunc("/api/simulations", h.Simulate).Methods("POST")
	r.HandleFunc("/api/runs", h.ListRuns).Methods("GET")
	r.HandleFunc("/api/runs/{id}", h.GetRun).Methods("GET")
	r.HandleFunc("/api/runs/{id}/ledger", h.GetRunLedger).Methods("GET")
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListStrategies(t *testing.T) {
	bt := &fakeBacktester{names: []string{"equal_weight", "momentum"}}
	rec := do(t, newTestRouter(NewSimulationHandler(bt, nil, nil)), "GET", "/api/strategies", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"equal_weight", "momentum"}, body["strategies"])
}

func TestSimulate(t *testing.T) {
	runID := uuid.New()
	bt := &fakeBacktester{resp: &runner.Response{RunID: runID, Result: sampleResult()}}
	r := newTestRouter(NewSimulationHandler(bt, nil, nil))

	rec := do(t, r, "POST", "/api/simulations", map[string]interface{}{
		"strategy":       "equal_weight",
		"from":           "2020-01-01",
		"to":             "2020-03-01",
		"params":         map[string]float64{"lookback": 10},
		"tickers":        []string{"AAA"},
		"save":           true,
		"include_ledger": true,
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "equal_weight", bt.req.Strategy)
	assert.Equal(t, time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC), bt.req.End)
	assert.Equal(t, 10.0, bt.req.Params["lookback"])
	assert.True(t, bt.req.Save)

	var body SimulationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, runID.String(), body.RunID)
	assert.Equal(t, []string{"AAA"}, body.Instruments)
	assert.Equal(t, 10000.0, body.Summary.FinalCapital)
	assert.Len(t, body.Ledger, 1)
	assert.Equal(t, int64(3), body.DurationMS)
}

func TestSimulateOmitsLedgerByDefault(t *testing.T) {
	bt := &fakeBacktester{resp: &runner.Response{Result: sampleResult()}}
	rec := do(t, newTestRouter(NewSimulationHandler(bt, nil, nil)), "POST", "/api/simulations",
		`{"strategy":"equal_weight","from":"2020-01-01","to":"2020-01-02"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "ledger")
	assert.NotContains(t, body, "run_id")
}

func TestSimulateBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"strategy":`},
		{"unknown field", `{"strategy":"x","from":"2020-01-01","to":"2020-01-02","bogus":1}`},
		{"missing strategy", `{"from":"2020-01-01","to":"2020-01-02"}`},
		{"bad from", `{"strategy":"x","from":"01/01/2020","to":"2020-01-02"}`},
		{"bad to", `{"strategy":"x","from":"2020-01-01","to":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bt := &fakeBacktester{}
			rec := do(t, newTestRouter(NewSimulationHandler(bt, nil, nil)), "POST", "/api/simulations", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, bt.req.Strategy, "backtester must not run")
		})
	}
}

func TestSimulateErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unknown strategy", fmt.Errorf("wrap: %w", strategy.ErrUnknownStrategy), http.StatusBadRequest},
		{"empty calendar", backtest.ErrEmptyCalendar, http.StatusBadRequest},
		{"no instruments", backtest.ErrNoInstruments, http.StatusBadRequest},
		{"store unavailable", runner.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{"missing forecast", fmt.Errorf("simulate: %w", backtest.ErrMissingForecast), http.StatusUnprocessableEntity},
		{"not implemented", backtest.ErrNotImplemented, http.StatusUnprocessableEntity},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bt := &fakeBacktester{err: tt.err}
			rec := do(t, newTestRouter(NewSimulationHandler(bt, nil, nil)), "POST", "/api/simulations",
				`{"strategy":"x","from":"2020-01-01","to":"2020-01-02"}`)

			assert.Equal(t, tt.status, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRunsWithoutStore(t *testing.T) {
	r := newTestRouter(NewSimulationHandler(&fakeBacktester{}, nil, nil))

	for _, path := range []string{"/api/runs", "/api/runs/" + uuid.NewString(), "/api/runs/" + uuid.NewString() + "/ledger"} {
		rec := do(t, r, "GET", path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestRunEndpoints(t *testing.T) {
	id := uuid.New()
	runs := &fakeRuns{
		records: map[uuid.UUID]*backtest.RunRecord{
			id: {RunID: id, Strategy: "momentum", Instruments: []string{"AAA"}},
		},
		rows: sampleResult().Ledger.Rows,
	}
	r := newTestRouter(NewSimulationHandler(&fakeBacktester{}, runs, nil))

	t.Run("list", func(t *testing.T) {
		rec := do(t, r, "GET", "/api/runs?limit=5", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 1, body.Count)
	})

	t.Run("list bad limit", func(t *testing.T) {
		rec := do(t, r, "GET", "/api/runs?limit=0", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get", func(t *testing.T) {
		rec := do(t, r, "GET", "/api/runs/"+id.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "momentum")
	})

	t.Run("get not found", func(t *testing.T) {
		rec := do(t, r, "GET", "/api/runs/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("get bad id", func(t *testing.T) {
		rec := do(t, r, "GET", "/api/runs/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("ledger", func(t *testing.T) {
		rec := do(t, r, "GET", "/api/runs/"+id.String()+"/ledger", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			RunID string         `json:"run_id"`
			Rows  []backtest.Row `json:"rows"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, id.String(), body.RunID)
		assert.Len(t, body.Rows, 1)
	})
}
