// Package query bridges synchronous HTTP handlers to the asynchronous
// per-symbol cell state machine, and reports aggregate service readiness.
package query

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/symbolcache/symbolcache/internal/cell"
	"github.com/symbolcache/symbolcache/internal/marketdata"
)

// Bridge implements AskOne/AskAll over a cell Registry.
type Bridge struct {
	registry *cell.Registry
}

// NewBridge builds a Bridge over the given Registry.
func NewBridge(registry *cell.Registry) *Bridge {
	return &Bridge{registry: registry}
}

// AskOne returns the current state of a single symbol's cell, creating the
// cell (in Uninitialized state) if it has never been referenced. It blocks
// up to timeout or until ctx is cancelled, and never synthesizes a state
// transition — the reply is the cell's state verbatim (Uninitialized reads
// synthesize a minimum-viable Stock, but the cell's own status is untouched).
func (b *Bridge) AskOne(ctx context.Context, symbol marketdata.SymbolID, timeout time.Duration) (cell.State, error) {
	askCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := b.registry.GetOrCreate(symbol)
	return c.Ask(askCtx)
}

// AllResult is the outcome of an AskAll call.
type AllResult struct {
	States  []cell.State
	Partial bool // true if one or more cells didn't reply within timeout
}

// AskAll fans the same ask out to every cell currently in the registry. A
// cell that doesn't reply within timeout is omitted and logged rather than
// failing the whole call (see DESIGN.md Open Question #2).
func (b *Bridge) AskAll(ctx context.Context, timeout time.Duration) AllResult {
	cells := b.registry.All()

	type outcome struct {
		state cell.State
		err   error
	}
	results := make(chan outcome, len(cells))

	askCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for _, c := range cells {
		c := c
		go func() {
			state, err := c.Ask(askCtx)
			results <- outcome{state: state, err: err}
		}()
	}

	states := make([]cell.State, 0, len(cells))
	partial := false
	for i := 0; i < len(cells); i++ {
		o := <-results
		if o.err != nil {
			partial = true
			log.Warn().Err(o.err).Msg("query: cell omitted from AskAll due to timeout")
			continue
		}
		states = append(states, o.state)
	}

	return AllResult{States: states, Partial: partial}
}
