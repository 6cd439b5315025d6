// Package warmup drives every symbol cell from uninitialized to populated or
// failed by fanning out bounded-concurrency calls to the MarketClient.
package warmup

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/symbolcache/symbolcache/internal/cell"
	applog "github.com/symbolcache/symbolcache/internal/log"
	"github.com/symbolcache/symbolcache/internal/marketdata"
)

// Config controls the pipeline's fan-out width and retry policy.
type Config struct {
	MaxParallelFetches int
	MaxAttempts        int
	BackoffBase        time.Duration
	BackoffMax         time.Duration
}

// DefaultConfig returns sane defaults for MaxAttempts/backoff, leaving
// MaxParallelFetches to the caller (it comes straight from service config).
func DefaultConfig(maxParallelFetches int) Config {
	return Config{
		MaxParallelFetches: maxParallelFetches,
		MaxAttempts:        3,
		BackoffBase:        250 * time.Millisecond,
		BackoffMax:         5 * time.Second,
	}
}

// Pipeline is the WarmupPipeline component.
type Pipeline struct {
	client   marketdata.Client
	registry *cell.Registry
	progress *Progress
	cfg      Config
}

// NewPipeline builds a Pipeline wired to a MarketClient, the shared cell
// Registry, and its own Progress counters.
func NewPipeline(client marketdata.Client, registry *cell.Registry, cfg Config) *Pipeline {
	return &Pipeline{
		client:   client,
		registry: registry,
		progress: &Progress{},
		cfg:      cfg,
	}
}

// Progress exposes the pipeline's counters for the ReadinessReporter.
func (p *Pipeline) Progress() *Progress { return p.progress }

// Run lists symbols for the configured exchange and drives every resulting
// cell from uninitialized to populated/failed, bounded to cfg.MaxParallelFetches
// concurrent fetches.
func (p *Pipeline) Run(ctx context.Context) error {
	p.progress.Start()
	defer p.progress.Complete()

	listings, err := p.client.ListSymbols(ctx)
	if err != nil {
		log.Error().Err(err).Msg("warmup: failed to list symbols")
		return err
	}
	p.progress.SetTotal(len(listings))

	steps := []string{"list-symbols", "fetch-profiles"}
	stepLog := applog.NewStepLogger("warmup", steps)
	stepLog.StartStep("list-symbols")
	stepLog.CompleteStep()
	stepLog.StartStep("fetch-profiles")

	sem := make(chan struct{}, maxInt(1, p.cfg.MaxParallelFetches))
	var wg sync.WaitGroup

	for _, listing := range listings {
		listing := listing
		wg.Add(1)
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Done()
			continue
		}

		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			p.fetchOne(ctx, listing)
		}()
	}

	wg.Wait()
	stepLog.Finish()
	return nil
}

func (p *Pipeline) fetchOne(ctx context.Context, listing marketdata.RawListing) {
	c := p.registry.GetOrCreate(listing.Symbol)
	defer p.progress.IncrementProcessed()

	var lastErr error
	backoff := p.cfg.BackoffBase

attempts:
	for attempt := 1; attempt <= maxInt(1, p.cfg.MaxAttempts); attempt++ {
		profile, err := p.client.FetchProfile(ctx, listing.Symbol)
		if err == nil {
			c.Initialize(listing, profile)
			return
		}

		lastErr = err
		var clientErr *marketdata.ClientError
		retryable := errors.As(err, &clientErr) && clientErr.Retryable()
		if !retryable || attempt == p.cfg.MaxAttempts {
			break
		}

		log.Warn().
			Err(err).
			Str("symbol", string(listing.Symbol)).
			Int("attempt", attempt).
			Msg("warmup: retrying fetch after retryable error")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			lastErr = ctx.Err()
			break attempts
		}
		backoff *= 2
		if backoff > p.cfg.BackoffMax {
			backoff = p.cfg.BackoffMax
		}
	}

	c.MarkFailure(lastErr.Error())
	log.Error().Err(lastErr).Str("symbol", string(listing.Symbol)).Msg("warmup: fetch failed terminally")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
