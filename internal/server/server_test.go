package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PortfolioLens/internal/catalog"
	"PortfolioLens/internal/metrics"
	"PortfolioLens/internal/model"
	"PortfolioLens/internal/recorder"
	"PortfolioLens/internal/rules"
	"PortfolioLens/internal/strategy"
)

type fixture struct {
	srv     *Server
	metrics *metrics.Metrics
	rec     *recorder.SQLiteRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rec, err := recorder.NewSQLiteRecorder(filepath.Join(t.TempDir(), "lens.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })

	m := metrics.New()
	srv := New(Config{
		Addr:     ":0",
		Log:      zerolog.Nop(),
		Engine:   strategy.NewEngine(catalog.Default(), nil),
		Recorder: rec,
		Metrics:  m,
	})
	return &fixture{srv: srv, metrics: m, rec: rec}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, catalog.Default().Version, body["catalog_version"])
}

func TestScore_Features(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/score", `{"features": {
		"pct_index_funds": 0.9, "pct_equity": 0.8, "pct_bonds": 0.2,
		"pct_single_stocks": 0, "avg_expense_ratio": 0.10, "top_5_positions_pct": 0.10}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	runID := rec.Header().Get("X-Run-ID")
	assert.NotEmpty(t, runID)

	var res model.ComplianceResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotNil(t, res.BestMatch)
	var passive *model.PhilosophyMatch
	for i := range res.Philosophies {
		if res.Philosophies[i].ID == "passive_indexing" {
			passive = &res.Philosophies[i]
		}
	}
	require.NotNil(t, passive)
	assert.Greater(t, passive.Score, 80)
	assert.False(t, passive.IsExcluded)

	runs, err := f.rec.RecentRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ScoreRequests.WithLabelValues("api")))
}

func TestScore_WireFormat(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/score", `{"features": {"pct_single_stocks": 0.6}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Contains(t, raw, "philosophies")
	assert.Contains(t, raw, "bestMatch")
	assert.Contains(t, raw, "features")

	first := raw["philosophies"].([]any)[0].(map[string]any)
	for _, key := range []string{"id", "displayName", "score", "matchedSignals", "missingSignals", "isExcluded"} {
		assert.Contains(t, first, key)
	}
}

func TestScore_PositionWeights(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/score", `{"features": {"pct_equity": 1}, "position_weights": [50, 30, 20]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res model.ComplianceResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 3, res.Features.NPositions)
	assert.InDelta(t, 0.5, res.Features.Top1PositionPct, 1e-9)
	assert.InDelta(t, 1.0, res.Features.Top5PositionsPct, 1e-9)
}

func TestScore_Holdings(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/score", `{
		"holdings": [
			{"symbol": "VTI", "weight": 80, "asset_class": "equity", "vehicle": "index_fund", "expense_ratio": 0.03},
			{"symbol": "BND", "weight": 20, "asset_class": "bond", "vehicle": "index_fund", "expense_ratio": 0.03}
		],
		"profile": {"rebalance_frequency": "annual"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res model.ComplianceResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.InDelta(t, 0.8, res.Features.PctEquity, 1e-9)
	assert.InDelta(t, 1.0, res.Features.PctIndexFunds, 1e-9)
	assert.Equal(t, model.RebalanceAnnual, res.Features.RebalanceFrequency)
	assert.Equal(t, 2, res.Features.NPositions)
}

func TestScore_BadRequests(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		body string
		code int
	}{
		{"not json", `{`, http.StatusBadRequest},
		{"unknown field", `{"features": {"pct_equityy": 1}}`, http.StatusBadRequest},
		{"trailing data", `{"features": {}} {}`, http.StatusBadRequest},
		{"bad holding", `{"holdings": [{"symbol": "X", "weight": 1, "asset_class": "tulips"}]}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/score", tt.body)
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

type failingRecorder struct{ recorder.NoopRecorder }

func (failingRecorder) RecordRun(context.Context, *recorder.Run) error {
	return errors.New("disk full")
}

func TestScore_RecorderFailureStillScores(t *testing.T) {
	srv := New(Config{
		Log:      zerolog.Nop(),
		Engine:   strategy.NewEngine(catalog.Default(), nil),
		Recorder: &failingRecorder{},
	})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/score", bytes.NewBufferString(`{"features": {}}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Run-ID"))
}

func TestEvaluateRule(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		body string
		want evaluateResponse
	}{
		{
			"true",
			`{"rule": "pct_equity between 0.5 and 0.9", "context": {"pct_equity": 0.6}}`,
			evaluateResponse{Rule: "pct_equity between 0.5 and 0.9", Result: true, Valid: true},
		},
		{
			"membership",
			`{"rule": "freq in [monthly, annual]", "context": {"freq": "annual"}}`,
			evaluateResponse{Rule: "freq in [monthly, annual]", Result: true, Valid: true},
		},
		{
			"missing field",
			`{"rule": "x > 1"}`,
			evaluateResponse{Rule: "x > 1", Result: false, Valid: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/rules/evaluate", tt.body)
			require.Equal(t, http.StatusOK, rec.Code)
			var got evaluateResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.want, got)
		})
	}

	rec := f.do(t, http.MethodPost, "/api/rules/evaluate", `{"rule": "x >> 1", "context": {"x": 5}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var got evaluateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.Valid)
	assert.False(t, got.Result)
	assert.NotEmpty(t, got.Error)
}

func TestEvaluateRule_LeavesEngineCompilerAlone(t *testing.T) {
	m := metrics.New()
	compiler := rules.NewCompiler(rules.WithFailureHook(m.RuleFailed))
	srv := New(Config{
		Log:     zerolog.Nop(),
		Engine:  strategy.NewEngine(catalog.Default(), compiler),
		Metrics: m,
	})
	cached := compiler.Len()
	require.NotZero(t, cached)

	for i := 0; i < 50; i++ {
		body := fmt.Sprintf(`{"rule": "x > %d >", "context": {"x": 1}}`, i)
		if i%2 == 0 {
			body = fmt.Sprintf(`{"rule": "x > %d", "context": {"x": 100}}`, i)
		}
		req := httptest.NewRequest(http.MethodPost, "/api/rules/evaluate", strings.NewReader(body))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, cached, compiler.Len())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RuleFailures))
}

func TestPhilosophies(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/philosophies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cat model.Catalog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cat))
	assert.Len(t, cat.Philosophies, len(catalog.Default().Philosophies))

	rec = f.do(t, http.MethodGet, "/api/philosophies/passive_indexing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p model.Philosophy
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "passive_indexing", p.ID)
	assert.NotEmpty(t, p.Detection.Signals)

	rec = f.do(t, http.MethodGet, "/api/philosophies/astrology", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		rec := f.do(t, http.MethodPost, "/api/score", `{"features": {"pct_equity": 0.5}}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/api/history?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Runs []recorder.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Runs, 2)

	rec = f.do(t, http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Runs, 3)

	for _, bad := range []string{"0", "-1", "abc"} {
		rec = f.do(t, http.MethodGet, "/api/history?limit="+bad, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/healthz", "")

	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `lens_http_requests_total{code="200",route="/healthz"} 1`)
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	srv := New(Config{
		Log:       zerolog.Nop(),
		Engine:    strategy.NewEngine(catalog.Default(), nil),
		RateLimit: 0.001,
		RateBurst: 1,
	})
	get := func(path string) int {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, get("/api/philosophies"))
	assert.Equal(t, http.StatusTooManyRequests, get("/api/philosophies"))
	// health checks are not limited
	assert.Equal(t, http.StatusOK, get("/healthz"))
}
