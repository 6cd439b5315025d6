package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbolcache/symbolcache/internal/cell"
	"github.com/symbolcache/symbolcache/internal/marketdata"
)

func TestBridge_AskOneCreatesUninitializedCellAndSynthesizes(t *testing.T) {
	registry := cell.NewRegistry()
	b := NewBridge(registry)

	state, err := b.AskOne(context.Background(), "NEW", 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, cell.StatusUninitialized, state.Status)
	assert.Equal(t, marketdata.SymbolID("NEW"), state.Stock.Symbol)
}

func TestBridge_AskOneReflectsPopulatedState(t *testing.T) {
	registry := cell.NewRegistry()
	c := registry.GetOrCreate("RDY")
	c.Initialize(marketdata.RawListing{Symbol: "RDY"}, marketdata.Profile{Name: "Ready Inc"})

	b := NewBridge(registry)
	state, err := b.AskOne(context.Background(), "RDY", 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, cell.StatusPopulated, state.Status)
	assert.Equal(t, "Ready Inc", state.Stock.Name)
}

func TestBridge_AskAllReturnsAllKnownCells(t *testing.T) {
	registry := cell.NewRegistry()
	registry.GetOrCreate("AAA")
	registry.GetOrCreate("BBB")

	b := NewBridge(registry)
	result := b.AskAll(context.Background(), 200*time.Millisecond)

	assert.Len(t, result.States, 2)
	assert.False(t, result.Partial)
}

func TestBridge_AskAllEmptyRegistry(t *testing.T) {
	registry := cell.NewRegistry()
	b := NewBridge(registry)

	result := b.AskAll(context.Background(), 50*time.Millisecond)
	assert.Empty(t, result.States)
	assert.False(t, result.Partial)
}
