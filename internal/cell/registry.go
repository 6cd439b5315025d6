package cell

import (
	"sync"

	"github.com/symbolcache/symbolcache/internal/marketdata"
)

// Registry is the lazy, append-only collection of SymbolCells for the
// process lifetime. Cells are never destroyed once created (no TTL
// eviction — see spec.md Non-goals).
type Registry struct {
	mu    sync.RWMutex
	cells map[marketdata.SymbolID]*SymbolCell
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{cells: make(map[marketdata.SymbolID]*SymbolCell)}
}

// GetOrCreate returns the cell for symbol, creating it under lock if this
// is the first reference. Two concurrent callers for the same unseen
// symbol are guaranteed to observe the same cell.
func (r *Registry) GetOrCreate(symbol marketdata.SymbolID) *SymbolCell {
	r.mu.RLock()
	c, ok := r.cells[symbol]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.cells[symbol]; ok {
		return c
	}

	c = newCell(symbol)
	r.cells[symbol] = c
	return c
}

// Get returns the cell for symbol if it has already been created.
func (r *Registry) Get(symbol marketdata.SymbolID) (*SymbolCell, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cells[symbol]
	return c, ok
}

// All returns a snapshot slice of every cell currently in the registry.
func (r *Registry) All() []*SymbolCell {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*SymbolCell, 0, len(r.cells))
	for _, c := range r.cells {
		out = append(out, c)
	}
	return out
}

// Count returns the number of cells currently in the registry.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cells)
}
