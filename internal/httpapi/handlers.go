package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/symbolcache/symbolcache/internal/marketdata"
	"github.com/symbolcache/symbolcache/internal/metrics"
	"github.com/symbolcache/symbolcache/internal/query"
)

// Handlers owns the dependencies every route needs to serve a request.
type Handlers struct {
	bridge     *query.Bridge
	reporter   *query.Reporter
	metrics    *metrics.Registry
	askTimeout time.Duration
}

func newHandlers(bridge *query.Bridge, reporter *query.Reporter, reg *metrics.Registry, askTimeout time.Duration) *Handlers {
	return &Handlers{bridge: bridge, reporter: reporter, metrics: reg, askTimeout: askTimeout}
}

func (h *Handlers) metricsHandler() http.Handler {
	return h.metrics.Handler()
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("httpapi: failed to encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:     code,
		Message:   message,
		Code:      status,
		RequestID: requestIDFromContext(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

// GetStock handles GET /stocks/{symbol}. A cell read never fails by
// contract: an unknown symbol gets a 200 with a minimum-viable Stock rather
// than a 404, matching the service's availability-over-correctness stance.
func (h *Handlers) GetStock(w http.ResponseWriter, r *http.Request) {
	timer := h.metrics.StartRequestTimer("get_stock")
	raw := mux.Vars(r)["symbol"]
	symbol := marketdata.NewSymbolID(raw)
	if !symbol.Valid() {
		timer.Stop(http.StatusBadRequest)
		h.writeError(w, r, http.StatusBadRequest, "INVALID_STOCK_SYMBOL", "symbol must be 1-10 characters of A-Z, 0-9, '.', or '-'")
		return
	}

	state, err := h.bridge.AskOne(r.Context(), symbol, h.askTimeout)
	if err != nil {
		timer.Stop(http.StatusGatewayTimeout)
		h.writeError(w, r, http.StatusGatewayTimeout, "ASK_TIMEOUT", "timed out waiting for symbol state")
		return
	}

	timer.Stop(http.StatusOK)
	h.writeJSON(w, http.StatusOK, stockResponseFromStock(state.Stock))
}

// ListStocks handles GET /stocks, returning every known symbol's current
// Stock (synthesized ones included) plus a partial flag when any cell
// didn't answer in time.
func (h *Handlers) ListStocks(w http.ResponseWriter, r *http.Request) {
	timer := h.metrics.StartRequestTimer("list_stocks")
	result := h.bridge.AskAll(r.Context(), h.askTimeout)

	stocks := make([]StockResponse, 0, len(result.States))
	for _, state := range result.States {
		stocks = append(stocks, stockResponseFromStock(state.Stock))
	}

	timer.Stop(http.StatusOK)
	h.writeJSON(w, http.StatusOK, BulkStocksResponse{
		Timestamp: time.Now().UTC(),
		Count:     len(stocks),
		Partial:   result.Partial,
		Stocks:    stocks,
	})
}

// Health handles GET /health. Always 200: state alone (starting / warming /
// degraded / ready) conveys service health, per spec.md §6.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	report := h.reporter.Report()

	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status: string(report.Status),
		Warmup: HealthWarmup{
			Started:   report.Warmup.Started,
			Completed: report.Warmup.Completed,
			Total:     report.Warmup.Total,
			Processed: report.Warmup.Processed,
		},
		Percent:  report.Percent,
		Provider: report.Provider,
	})
}

// NotFound handles requests to routes that don't exist.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "ENDPOINT_NOT_FOUND", "the requested endpoint does not exist")
}
