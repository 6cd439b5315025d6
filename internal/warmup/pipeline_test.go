package warmup

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbolcache/symbolcache/internal/cell"
	"github.com/symbolcache/symbolcache/internal/marketdata"
)

type fakeClient struct {
	listings    []marketdata.RawListing
	listErr     error
	failSymbols map[marketdata.SymbolID]*marketdata.ClientError
	calls       int64
}

func (f *fakeClient) ListSymbols(ctx context.Context) ([]marketdata.RawListing, error) {
	return f.listings, f.listErr
}

func (f *fakeClient) FetchProfile(ctx context.Context, symbol marketdata.SymbolID) (marketdata.Profile, error) {
	atomic.AddInt64(&f.calls, 1)
	if ce, bad := f.failSymbols[symbol]; bad {
		return marketdata.Profile{}, ce
	}
	return marketdata.Profile{Name: "Name-" + string(symbol), Exchange: "US"}, nil
}

func TestPipeline_RunFetchesAllSymbols(t *testing.T) {
	client := &fakeClient{
		listings: []marketdata.RawListing{
			{Symbol: "AAA"}, {Symbol: "BBB"}, {Symbol: "CCC"},
		},
	}
	registry := cell.NewRegistry()
	p := NewPipeline(client, registry, DefaultConfig(2))

	require.NoError(t, p.Run(context.Background()))

	snap := p.Progress().Snapshot()
	assert.EqualValues(t, 3, snap.Total)
	assert.EqualValues(t, 3, snap.Processed)
	assert.True(t, p.Progress().Done())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	state, err := func() (cell.State, error) {
		c, ok := registry.Get("AAA")
		require.True(t, ok)
		return c.Ask(ctx)
	}()
	require.NoError(t, err)
	assert.Equal(t, cell.StatusPopulated, state.Status)
}

func TestPipeline_ProcessedIncrementsOnFailureToo(t *testing.T) {
	client := &fakeClient{
		listings: []marketdata.RawListing{{Symbol: "GOOD"}, {Symbol: "BAD"}},
		failSymbols: map[marketdata.SymbolID]*marketdata.ClientError{
			"BAD": {Kind: marketdata.ErrKindNotFound, Endpoint: "/stock/profile2", Symbol: "BAD", Err: assertErr{}},
		},
	}
	registry := cell.NewRegistry()
	p := NewPipeline(client, registry, DefaultConfig(2))

	require.NoError(t, p.Run(context.Background()))

	snap := p.Progress().Snapshot()
	assert.EqualValues(t, 2, snap.Processed, "processed must count both success and terminal failure")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, ok := registry.Get("BAD")
	require.True(t, ok)
	state, err := c.Ask(ctx)
	require.NoError(t, err)
	assert.Equal(t, cell.StatusFailed, state.Status)
	assert.Contains(t, state.Reason, "boom")
}

func TestPipeline_RetriesRetryableErrorsBeforeFailing(t *testing.T) {
	client := &fakeClient{
		listings: []marketdata.RawListing{{Symbol: "FLAKY"}},
		failSymbols: map[marketdata.SymbolID]*marketdata.ClientError{
			"FLAKY": {Kind: marketdata.ErrKindUpstream5xx, Endpoint: "/stock/profile2", Symbol: "FLAKY", Err: assertErr{}},
		},
	}
	registry := cell.NewRegistry()
	cfg := DefaultConfig(1)
	cfg.MaxAttempts = 3
	cfg.BackoffBase = time.Millisecond
	cfg.BackoffMax = 2 * time.Millisecond
	p := NewPipeline(client, registry, cfg)

	require.NoError(t, p.Run(context.Background()))

	assert.EqualValues(t, 3, atomic.LoadInt64(&client.calls), "should retry up to MaxAttempts")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, _ := registry.Get("FLAKY")
	state, err := c.Ask(ctx)
	require.NoError(t, err)
	assert.Equal(t, cell.StatusFailed, state.Status)
}

func TestPipeline_EmptyUniverseCompletesImmediately(t *testing.T) {
	client := &fakeClient{listings: []marketdata.RawListing{}}
	registry := cell.NewRegistry()
	p := NewPipeline(client, registry, DefaultConfig(4))

	require.NoError(t, p.Run(context.Background()))

	snap := p.Progress().Snapshot()
	assert.EqualValues(t, 0, snap.Total)
	assert.EqualValues(t, 0, snap.Processed)
	assert.Equal(t, int64(1), snap.Completed)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
