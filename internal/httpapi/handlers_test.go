package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbolcache/symbolcache/internal/cell"
	"github.com/symbolcache/symbolcache/internal/marketdata"
	"github.com/symbolcache/symbolcache/internal/metrics"
	"github.com/symbolcache/symbolcache/internal/net/circuit"
	"github.com/symbolcache/symbolcache/internal/query"
	"github.com/symbolcache/symbolcache/internal/warmup"
)

func newTestServer(t *testing.T) (*Server, *cell.Registry, *warmup.Progress) {
	t.Helper()
	registry := cell.NewRegistry()
	bridge := query.NewBridge(registry)
	progress := &warmup.Progress{}
	breaker := circuit.NewBreaker("test", circuit.Config{
		FailureThreshold: 5, SuccessThreshold: 2, Timeout: time.Second, RequestTimeout: time.Second,
	})
	reporter := query.NewReporter(progress, breaker, nil)
	reg := metrics.NewRegistry()

	cfg := DefaultServerConfig()
	cfg.AskTimeout = 200 * time.Millisecond
	srv := NewServer(cfg, bridge, reporter, reg)
	return srv, registry, progress
}

func TestGetStock_InvalidSymbolReturns400(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/stocks/not%20valid!", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_STOCK_SYMBOL", body.Error)
}

func TestGetStock_TooLongSymbolReturns400(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/stocks/ABCDEFGHIJK", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetStock_UnknownSymbolReturns200WithSynthesizedStock(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/stocks/ZZZZ", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body StockResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ZZZZ", body.Symbol)
	assert.Empty(t, body.Name)
	assert.WithinDuration(t, time.Now().UTC(), body.LastUpdated, time.Second)
}

func TestGetStock_PopulatedReturns200(t *testing.T) {
	srv, registry, _ := newTestServer(t)
	c := registry.GetOrCreate("AAPL")
	c.Initialize(marketdata.RawListing{Symbol: "AAPL"}, marketdata.Profile{Name: "Apple Inc"})

	req := httptest.NewRequest(http.MethodGet, "/stocks/AAPL", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body StockResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Apple Inc", body.Name)
}

func TestGetStock_FailedWithNoPriorStockReturns200WithSynthesizedStock(t *testing.T) {
	srv, registry, _ := newTestServer(t)
	c := registry.GetOrCreate("BAD")
	c.MarkFailure("boom")

	req := httptest.NewRequest(http.MethodGet, "/stocks/BAD", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body StockResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "BAD", body.Symbol)
}

func TestListStocks_ReturnsEveryKnownCell(t *testing.T) {
	srv, registry, _ := newTestServer(t)
	populated := registry.GetOrCreate("AAA")
	populated.Initialize(marketdata.RawListing{Symbol: "AAA"}, marketdata.Profile{Name: "Populated Co"})
	registry.GetOrCreate("BBB") // still uninitialized, still included

	req := httptest.NewRequest(http.MethodGet, "/stocks", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body BulkStocksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.False(t, body.Partial)
}

func TestHealth_StartingReturns200(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "starting", body.Status)
}

func TestHealth_DegradedStillReturns200(t *testing.T) {
	registry := cell.NewRegistry()
	bridge := query.NewBridge(registry)
	progress := &warmup.Progress{}
	progress.Start()
	progress.Complete()
	progress.SetTotal(1)
	// Processed stays 0 < Total: degraded per spec.md's table.

	breaker := circuit.NewBreaker("degraded-test", circuit.Config{
		FailureThreshold: 5, SuccessThreshold: 2, Timeout: time.Hour, RequestTimeout: time.Second,
	})
	reporter := query.NewReporter(progress, breaker, nil)
	reg := metrics.NewRegistry()
	cfg := DefaultServerConfig()
	srv := NewServer(cfg, bridge, reporter, reg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
}

func TestHealth_EmptyUniverseReportsReadyAtFullPercent(t *testing.T) {
	registry := cell.NewRegistry()
	bridge := query.NewBridge(registry)
	progress := &warmup.Progress{}
	progress.Start()
	progress.SetTotal(0)
	progress.Complete()

	breaker := circuit.NewBreaker("empty-test", circuit.Config{
		FailureThreshold: 5, SuccessThreshold: 2, Timeout: time.Hour, RequestTimeout: time.Second,
	})
	reporter := query.NewReporter(progress, breaker, nil)
	reg := metrics.NewRegistry()
	cfg := DefaultServerConfig()
	srv := NewServer(cfg, bridge, reporter, reg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body.Status)
	assert.EqualValues(t, 100, body.Percent)
}

func TestNotFound_Returns404WithEnvelope(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ENDPOINT_NOT_FOUND", body.Error)
	assert.NotEmpty(t, body.RequestID)
}

