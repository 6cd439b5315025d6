package cell

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbolcache/symbolcache/internal/marketdata"
)

func TestSymbolCell_ReadOnUninitializedSynthesizesMinimumViableStock(t *testing.T) {
	c := newCell(marketdata.NewSymbolID("aapl"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	state, err := c.Ask(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusUninitialized, state.Status)
	assert.Equal(t, marketdata.SymbolID("AAPL"), state.Stock.Symbol)
	assert.Empty(t, state.Stock.Name)
	assert.WithinDuration(t, time.Now().UTC(), state.Stock.LastUpdated, time.Second)
}

func TestSymbolCell_ReadDoesNotTransitionUninitialized(t *testing.T) {
	c := newCell(marketdata.NewSymbolID("STABLE"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first, err := c.Ask(ctx)
	require.NoError(t, err)
	second, err := c.Ask(ctx)
	require.NoError(t, err)

	assert.Equal(t, StatusUninitialized, first.Status)
	assert.Equal(t, StatusUninitialized, second.Status, "reading twice must not transition state")
}

func TestSymbolCell_InitializeTransitionsToPopulated(t *testing.T) {
	c := newCell(marketdata.NewSymbolID("MSFT"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c.Initialize(
		marketdata.RawListing{Symbol: "MSFT"},
		marketdata.Profile{Name: "Microsoft Corporation", Exchange: "US"},
	)

	state, err := c.Ask(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusPopulated, state.Status)
	assert.Equal(t, "Microsoft Corporation", state.Stock.Name)
}

func TestSymbolCell_MarkFailureWithNoPriorStockSynthesizesOnRead(t *testing.T) {
	c := newCell(marketdata.NewSymbolID("XYZ"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c.MarkFailure("not found")

	state, err := c.Ask(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, state.Status)
	assert.Equal(t, "not found", state.Reason)
	assert.Equal(t, marketdata.SymbolID("XYZ"), state.Stock.Symbol)
}

func TestSymbolCell_MarkFailurePreservesLastKnownStock(t *testing.T) {
	c := newCell(marketdata.NewSymbolID("AAPL"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c.Initialize(marketdata.RawListing{Symbol: "AAPL"}, marketdata.Profile{Name: "Apple Inc"})
	c.MarkFailure("upstream 5xx")

	state, err := c.Ask(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, state.Status)
	assert.Equal(t, "Apple Inc", state.Stock.Name, "last-known stock survives a subsequent failure")
}

func TestSymbolCell_SubsequentInitializeAfterFailureReturnsToPopulated(t *testing.T) {
	c := newCell(marketdata.NewSymbolID("RETRY"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c.MarkFailure("timeout")
	c.Initialize(marketdata.RawListing{Symbol: "RETRY"}, marketdata.Profile{Name: "Retry Corp"})

	state, err := c.Ask(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusPopulated, state.Status)
	assert.Equal(t, "Retry Corp", state.Stock.Name)
}

func TestSymbolCell_AskRespectsContextDeadline(t *testing.T) {
	c := newCell(marketdata.NewSymbolID("SLOW"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := c.Ask(ctx)
	require.Error(t, err)
}
