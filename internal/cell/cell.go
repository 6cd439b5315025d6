// Package cell implements the per-symbol actor-like state holder
// (SymbolCell) and its Registry. Each cell processes messages through a
// single goroutine reading a buffered channel, giving totally-ordered state
// transitions per symbol without a mutex.
package cell

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/symbolcache/symbolcache/internal/marketdata"
)

// Status is the lifecycle state of a SymbolCell.
type Status int

const (
	StatusUninitialized Status = iota
	StatusPopulated
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusPopulated:
		return "populated"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the full point-in-time snapshot of a cell, as returned by Read.
// Stock is always populated: for Uninitialized (or Failed with no prior
// Stock), Read synthesizes a minimum-viable Stock rather than failing.
type State struct {
	Symbol marketdata.SymbolID
	Status Status
	Stock  marketdata.Stock
	Reason string // set when Status == StatusFailed
}

type messageKind int

const (
	msgInitialize messageKind = iota
	msgMarkFailure
	msgRead
)

type message struct {
	kind    messageKind
	listing marketdata.RawListing
	profile marketdata.Profile
	reason  string
	reply   chan State
}

// SymbolCell is the single-goroutine state machine for one symbol. It
// accepts exactly three messages — Initialize, MarkFailure, Read — each
// processed to completion before the next begins.
type SymbolCell struct {
	symbol marketdata.SymbolID
	inbox  chan message
	done   chan struct{}

	status   Status
	stock    marketdata.Stock
	hasStock bool
	reason   string
}

func newCell(symbol marketdata.SymbolID) *SymbolCell {
	c := &SymbolCell{
		symbol: symbol,
		inbox:  make(chan message, 16),
		done:   make(chan struct{}),
		status: StatusUninitialized,
	}
	go c.run()
	return c
}

func (c *SymbolCell) run() {
	for msg := range c.inbox {
		switch msg.kind {
		case msgInitialize:
			c.stock = marketdata.MergeStock(msg.listing, msg.profile, time.Now().UTC())
			c.hasStock = true
			c.status = StatusPopulated
			c.reason = ""
		case msgMarkFailure:
			// Preserves any prior Stock as the last-known value.
			c.status = StatusFailed
			c.reason = msg.reason
		case msgRead:
			if msg.reply != nil {
				msg.reply <- c.snapshot()
			}
			continue
		}
		log.Debug().
			Str("symbol", string(c.symbol)).
			Str("status", c.status.String()).
			Msg("cell transitioned")
	}
	close(c.done)
}

// snapshot builds the Read reply without mutating cell state. Populated
// returns the stored Stock; Failed with a last-known Stock returns it;
// everything else (Uninitialized, or Failed with no prior Stock) synthesizes
// a minimum-viable Stock — symbol and current timestamp only — per spec.md's
// deliberate availability tradeoff.
func (c *SymbolCell) snapshot() State {
	if c.hasStock {
		return State{Symbol: c.symbol, Status: c.status, Stock: c.stock, Reason: c.reason}
	}
	return State{
		Symbol: c.symbol,
		Status: c.status,
		Stock:  marketdata.Stock{Symbol: c.symbol, LastUpdated: time.Now().UTC()},
		Reason: c.reason,
	}
}

// Initialize combines a listing and profile and stores the result as
// Populated, overwriting any prior state. Does not fail.
func (c *SymbolCell) Initialize(listing marketdata.RawListing, profile marketdata.Profile) {
	c.send(message{kind: msgInitialize, listing: listing, profile: profile})
}

// MarkFailure transitions the cell to Failed, preserving any prior Stock as
// the last-known value.
func (c *SymbolCell) MarkFailure(reason string) {
	c.send(message{kind: msgMarkFailure, reason: reason})
}

func (c *SymbolCell) send(msg message) {
	select {
	case c.inbox <- msg:
	case <-c.done:
	}
}

// Ask returns the cell's current state without causing any transition,
// blocking until the cell's message loop processes the request or ctx is
// done. This is the primitive QueryBridge.AskOne/AskAll build on.
func (c *SymbolCell) Ask(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	reply := make(chan State, 1)
	select {
	case c.inbox <- message{kind: msgRead, reply: reply}:
	case <-ctx.Done():
		return State{}, ctx.Err()
	case <-c.done:
		return State{}, ctx.Err()
	}

	select {
	case state := <-reply:
		return state, nil
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

// Symbol returns the symbol this cell is for.
func (c *SymbolCell) Symbol() marketdata.SymbolID { return c.symbol }
