package query

import (
	"github.com/symbolcache/symbolcache/internal/net/budget"
	"github.com/symbolcache/symbolcache/internal/net/circuit"
	"github.com/symbolcache/symbolcache/internal/warmup"
)

// Readiness is the aggregate service health state exposed on /health.
type Readiness string

const (
	ReadinessStarting Readiness = "starting"
	ReadinessWarming  Readiness = "warming"
	ReadinessDegraded Readiness = "degraded"
	ReadinessReady    Readiness = "ready"
)

// ReadinessReport is the full /health payload.
type ReadinessReport struct {
	Status   Readiness               `json:"status"`
	Warmup   warmup.ProgressSnapshot `json:"warmup"`
	Percent  int64                   `json:"percent"`
	Provider ProviderHealth          `json:"provider"`
}

// ProviderHealth summarizes the MarketClient's resilience state.
type ProviderHealth struct {
	CircuitState    string `json:"circuit_state"`
	BudgetRemaining int64  `json:"budget_remaining,omitempty"`
	BudgetTracked   bool   `json:"budget_tracked"`
}

// Reporter derives aggregate readiness from warm-up progress plus the
// provider's circuit-breaker and budget state, grounded on the teacher's
// provider-health-summary pattern.
type Reporter struct {
	progress *warmup.Progress
	breaker  *circuit.Breaker
	budget   *budget.Tracker
}

// NewReporter builds a Reporter. budgetTracker may be nil if no daily
// budget is configured for the provider.
func NewReporter(progress *warmup.Progress, breaker *circuit.Breaker, budgetTracker *budget.Tracker) *Reporter {
	return &Reporter{progress: progress, breaker: breaker, budget: budgetTracker}
}

// Report computes the current ReadinessReport.
func (r *Reporter) Report() ReadinessReport {
	snap := r.progress.Snapshot()

	health := ProviderHealth{CircuitState: r.breaker.State()}
	if r.budget != nil {
		health.BudgetTracked = true
		health.BudgetRemaining = r.budget.Stats().Remaining
	}

	status := r.deriveStatus(snap, health)

	return ReadinessReport{
		Status:   status,
		Warmup:   snap,
		Percent:  percentOf(snap.Processed, snap.Total),
		Provider: health,
	}
}

// deriveStatus follows spec.md's table: starting while warm-up hasn't
// begun, warming until it's completed, then ready or degraded depending on
// whether every listing was processed. The provider's circuit-breaker and
// budget health (a supplemented concern beyond the base table) can also
// force degraded once warm-up has completed.
func (r *Reporter) deriveStatus(snap warmup.ProgressSnapshot, health ProviderHealth) Readiness {
	if snap.Started == 0 {
		return ReadinessStarting
	}
	if snap.Completed == 0 {
		return ReadinessWarming
	}
	if snap.Processed < snap.Total {
		return ReadinessDegraded
	}
	if !r.breaker.IsHealthy() {
		return ReadinessDegraded
	}
	if health.BudgetTracked && health.BudgetRemaining <= 0 {
		return ReadinessDegraded
	}
	return ReadinessReady
}

// percentOf computes processed*100/total, rounded down. An empty universe
// (total=0) is reported as 100%: nothing was left to process.
func percentOf(processed, total int64) int64 {
	if total <= 0 {
		return 100
	}
	return processed * 100 / total
}
