package warmup

import "sync/atomic"

// Progress tracks warm-up counters with atomic fields so the HTTP health
// handler can read a consistent snapshot without locking against the
// pipeline's hot path.
type Progress struct {
	started   int64
	completed int64
	total     int64
	processed int64
}

// ProgressSnapshot is a point-in-time copy of Progress for JSON responses.
type ProgressSnapshot struct {
	Started   int64 `json:"started"`
	Completed int64 `json:"completed"`
	Total     int64 `json:"total"`
	Processed int64 `json:"processed"`
}

// Start marks the pipeline as having begun (idempotent: sets the flag to 1).
func (p *Progress) Start() { atomic.StoreInt64(&p.started, 1) }

// Complete marks the pipeline run as finished.
func (p *Progress) Complete() { atomic.AddInt64(&p.completed, 1) }

// SetTotal records how many symbols this run will process.
func (p *Progress) SetTotal(n int) { atomic.StoreInt64(&p.total, int64(n)) }

// IncrementProcessed records that one symbol's fetch reached a terminal
// state, success or failure (see DESIGN.md Open Question #1).
func (p *Progress) IncrementProcessed() { atomic.AddInt64(&p.processed, 1) }

// Snapshot returns a consistent-enough read of all counters.
func (p *Progress) Snapshot() ProgressSnapshot {
	return ProgressSnapshot{
		Started:   atomic.LoadInt64(&p.started),
		Completed: atomic.LoadInt64(&p.completed),
		Total:     atomic.LoadInt64(&p.total),
		Processed: atomic.LoadInt64(&p.processed),
	}
}

// Done reports whether Total is non-zero and every symbol has reached a
// terminal state. It is false for an empty universe (Total == 0).
func (p *Progress) Done() bool {
	s := p.Snapshot()
	return s.Total > 0 && s.Processed >= s.Total
}
