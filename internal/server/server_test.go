package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/cryptoptimizer/internal/database"
	"github.com/aristath/cryptoptimizer/internal/domain"
	"github.com/aristath/cryptoptimizer/internal/modules/analytics"
	analyticshandlers "github.com/aristath/cryptoptimizer/internal/modules/analytics/handlers"
	"github.com/aristath/cryptoptimizer/internal/modules/optimization"
	"github.com/aristath/cryptoptimizer/internal/prices"
)

type staticSource domain.PriceTable

func (s staticSource) Load(ctx context.Context, assets []string, start, end time.Time) (domain.PriceTable, error) {
	selected, err := prices.Select(domain.PriceTable(s), assets)
	if err != nil {
		return domain.PriceTable{}, err
	}
	return prices.Slice(selected, start, end), nil
}

func testTable() domain.PriceTable {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pt := domain.PriceTable{Assets: []string{"BTC-USD", "ETH-USD"}}
	btc, eth := 40000.0, 2500.0
	for t := 0; t < 30; t++ {
		pt.Dates = append(pt.Dates, start.AddDate(0, 0, t))
		if t > 0 {
			btc *= 1.01 + 0.02*float64(t%3-1)
			eth *= 1.005 - 0.03*float64(t%2)
		}
		pt.Prices = append(pt.Prices, []float64{btc, eth})
	}
	return pt
}

func newTestServer(t *testing.T, historyDB *database.DB) (*Server, *prometheus.Registry) {
	t.Helper()
	return newServerWithSource(t, staticSource(testTable()), historyDB)
}

func newServerWithSource(t *testing.T, source prices.Source, historyDB *database.DB) (*Server, *prometheus.Registry) {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	registry := prometheus.NewRegistry()

	universe := domain.Universe{{ID: "BTC-USD", Name: "BTC"}, {ID: "ETH-USD", Name: "ETH"}}
	optimizer := optimization.NewOptimizer(optimization.DefaultSettings(), logger)
	service := analytics.NewService(source, optimizer, universe, analytics.NewMetrics(registry), logger)

	s := New(Config{
		Log:       logger,
		Port:      0,
		DevMode:   true,
		Analytics: analyticshandlers.NewHandler(service, analytics.DefaultSettings(), logger),
		HistoryDB: historyDB,
		Registry:  registry,
	})
	return s, registry
}

func do(s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "cryptoptimizer", body["service"])
	assert.NotContains(t, body, "history_db")
}

func TestHandleHealth_HistoryDatabase(t *testing.T) {
	db, err := database.New(database.Config{
		Path:    "file:" + t.Name() + "?mode=memory&cache=shared",
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	require.NoError(t, err)

	s, _ := newTestServer(t, db)

	w := do(s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"history_db":"ok"`)

	require.NoError(t, db.Close())
	w = do(s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)
}

func TestOptimizeRoute(t *testing.T) {
	s, registry := newTestServer(t, nil)

	body := []byte(`{"assets":["BTC-USD","ETH-USD"],"objective":"erc"}`)
	w := do(s, http.MethodPost, "/api/analytics/optimize", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data analytics.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, 1.0, resp.Data.Weights["BTC-USD"]+resp.Data.Weights["ETH-USD"], 1e-9)
	assert.Equal(t, 30, resp.Data.Observations)

	assert.Equal(t, 1.0, testutil.ToFloat64(
		s.metrics.requests.WithLabelValues(http.MethodPost, "/api/analytics/optimize", "200")))

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "cryptoptimizer_analyses_total")
	assert.Contains(t, names, "cryptoptimizer_http_requests_total")
}

func TestOptimizeRoute_HistoryTableMissing(t *testing.T) {
	db, err := database.New(database.Config{
		Path:    "file:" + t.Name() + "?mode=memory&cache=shared",
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, _ := newServerWithSource(t, prices.NewSQLiteSource(db, zerolog.Nop()), db)

	w := do(s, http.MethodPost, "/api/analytics/optimize", []byte(`{"assets":["BTC-USD","ETH-USD"]}`))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"kind":"data"`)
	assert.Contains(t, w.Body.String(), `"title":"Data unavailable"`)

	metrics := do(s, http.MethodGet, "/metrics", nil)
	assert.Contains(t, metrics.Body.String(), `cryptoptimizer_analysis_errors_total{kind="data"} 1`)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)

	do(s, http.MethodGet, "/api/analytics/models", nil)
	w := do(s, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `cryptoptimizer_http_requests_total{method="GET",route="/api/analytics/models",status="200"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(s, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/analytics/optimize", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
