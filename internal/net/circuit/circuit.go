// Package circuit wraps github.com/sony/gobreaker with the request-timeout
// and stats surface the rest of the tree (MarketClient, health reporting)
// depends on.
package circuit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker"
)

// ErrRequestTimeout is returned when a request exceeds its per-call timeout.
var ErrRequestTimeout = errors.New("request timeout")

// Config configures a Breaker.
type Config struct {
	FailureThreshold int           // consecutive failures to open the circuit
	SuccessThreshold int           // consecutive half-open successes to close it
	Timeout          time.Duration // time open before probing half-open
	RequestTimeout   time.Duration // per-call deadline enforced by Call
}

// Breaker gates calls to a single upstream dependency through gobreaker,
// adding a per-call context timeout the way the teacher's hand-rolled
// breaker did.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
	cfg  Config

	mu            sync.RWMutex
	totalRequests int64
	totalFailures int64
	totalTimeouts int64
}

// NewBreaker creates a named circuit breaker.
func NewBreaker(name string, cfg Config) *Breaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(cfg.SuccessThreshold),
		Interval:    60 * time.Second,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
	}

	return &Breaker{
		name: name,
		cb:   gobreaker.NewCircuitBreaker(settings),
		cfg:  cfg,
	}
}

// Call executes fn if the breaker allows it, enforcing RequestTimeout.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
	defer cancel()

	b.mu.Lock()
	b.totalRequests++
	b.mu.Unlock()

	_, err := b.cb.Execute(func() (interface{}, error) {
		done := make(chan error, 1)
		go func() { done <- fn(timeoutCtx) }()

		select {
		case err := <-done:
			return nil, err
		case <-timeoutCtx.Done():
			b.mu.Lock()
			b.totalTimeouts++
			b.mu.Unlock()
			return nil, ErrRequestTimeout
		}
	})

	if err != nil {
		b.mu.Lock()
		b.totalFailures++
		b.mu.Unlock()
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("circuit %s open: %w", b.name, err)
	}
	return err
}

// State returns the current gobreaker state as a string ("closed",
// "half-open", "open").
func (b *Breaker) State() string {
	switch b.cb.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "open"
	}
}

// Stats reports cumulative counters for health reporting.
func (b *Breaker) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	counts := b.cb.Counts()
	successRate := float64(0)
	if b.totalRequests > 0 {
		successRate = float64(b.totalRequests-b.totalFailures) / float64(b.totalRequests)
	}

	return Stats{
		State:               b.State(),
		TotalRequests:       b.totalRequests,
		TotalFailures:       b.totalFailures,
		TotalTimeouts:       b.totalTimeouts,
		ConsecutiveFailures: int(counts.ConsecutiveFailures),
		SuccessRate:         successRate,
	}
}

// IsHealthy reports whether the breaker is closed and not timing out too much.
func (b *Breaker) IsHealthy() bool {
	stats := b.Stats()
	return stats.State == "closed" && (stats.TotalRequests == 0 || stats.SuccessRate >= 0.9)
}

// Stats is a point-in-time snapshot of breaker counters.
type Stats struct {
	State               string  `json:"state"`
	TotalRequests       int64   `json:"total_requests"`
	TotalFailures       int64   `json:"total_failures"`
	TotalTimeouts       int64   `json:"total_timeouts"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	SuccessRate         float64 `json:"success_rate"`
}
