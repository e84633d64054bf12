package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/alphalab/internal/api/handlers"
	"github.com/wonny/alphalab/internal/runner"
	"github.com/wonny/alphalab/pkg/logger"
)

type panicBacktester struct{}

func (panicBacktester) Run(context.Context, runner.Request) (*runner.Response, error) {
	panic("boom")
}

func (panicBacktester) Strategies() []string { return []string{"equal_weight"} }

func newTestHandler() http.Handler {
	h := handlers.NewSimulationHandler(panicBacktester{}, nil, logger.Nop())
	return NewRouter(h, logger.Nop())
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "alphalab-api", body["service"])
}

func TestRoutes(t *testing.T) {
	r := newTestHandler()

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"list strategies", "GET", "/api/strategies", http.StatusOK},
		{"simulate with GET", "GET", "/api/simulations", http.StatusMethodNotAllowed},
		{"strategies with POST", "POST", "/api/strategies", http.StatusMethodNotAllowed},
		{"runs with POST", "POST", "/api/runs", http.StatusMethodNotAllowed},
		{"ledger with DELETE", "DELETE", "/api/runs/abc/ledger", http.StatusMethodNotAllowed},
		{"unknown path", "GET", "/api/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	body := `{"strategy":"equal_weight","from":"2020-01-01","to":"2020-01-02"}`
	rec := httptest.NewRecorder()

	require.NotPanics(t, func() {
		newTestHandler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/simulations", strings.NewReader(body)))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}
