// Package metrics wires the service's Prometheus instrumentation: HTTP
// request latency/count, cell transitions, and warm-up progress.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every Prometheus collector the service exposes on
// GET /metrics.
type Registry struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec

	CellTransitions *prometheus.CounterVec

	WarmupTotal     prometheus.Gauge
	WarmupProcessed prometheus.Gauge

	CircuitState *prometheus.GaugeVec

	handler http.Handler
}

// NewRegistry builds and registers every collector against a fresh
// prometheus.Registry, so repeated construction (e.g. in tests) never
// panics on duplicate registration.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "symbolcache_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"route", "status"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symbolcache_http_requests_total",
				Help: "Total HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),
		CellTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symbolcache_cell_transitions_total",
				Help: "Total SymbolCell state transitions",
			},
			[]string{"to"},
		),
		WarmupTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "symbolcache_warmup_total",
			Help: "Total symbols discovered for the current warm-up run",
		}),
		WarmupProcessed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "symbolcache_warmup_processed",
			Help: "Symbols processed (succeeded or failed) so far this warm-up run",
		}),
		CircuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "symbolcache_circuit_state",
				Help: "MarketClient circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		r.RequestDuration,
		r.RequestsTotal,
		r.CellTransitions,
		r.WarmupTotal,
		r.WarmupProcessed,
		r.CircuitState,
	)

	r.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return r
}

// Handler returns the /metrics HTTP handler.
func (r *Registry) Handler() http.Handler { return r.handler }

// RequestTimer tracks one HTTP request's duration for RequestDuration.
type RequestTimer struct {
	registry *Registry
	route    string
	start    time.Time
}

// StartRequestTimer begins timing a single HTTP request for the given
// route name.
func (r *Registry) StartRequestTimer(route string) *RequestTimer {
	return &RequestTimer{registry: r, route: route, start: time.Now()}
}

// Stop records the request's duration and increments its status counter.
func (t *RequestTimer) Stop(statusCode int) {
	status := statusBucket(statusCode)
	t.registry.RequestDuration.WithLabelValues(t.route, status).Observe(time.Since(t.start).Seconds())
	t.registry.RequestsTotal.WithLabelValues(t.route, status).Inc()
}

func statusBucket(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// RecordCellTransition records a SymbolCell reaching a new status.
func (r *Registry) RecordCellTransition(to string) {
	r.CellTransitions.WithLabelValues(to).Inc()
}

// SetWarmupProgress mirrors warm-up counters into gauges for scraping.
func (r *Registry) SetWarmupProgress(total, processed int64) {
	r.WarmupTotal.Set(float64(total))
	r.WarmupProcessed.Set(float64(processed))
}

// SetCircuitState mirrors a circuit breaker's state onto a gauge.
func (r *Registry) SetCircuitState(name, state string) {
	value := 0.0
	switch state {
	case "half-open":
		value = 1.0
	case "open":
		value = 2.0
	}
	r.CircuitState.WithLabelValues(name).Set(value)
}
