package agent

import (
	"fmt"
	"sync"
	"time"
)

// QuotaLimits sets ceilings on cumulative subagent resource use. A zero
// value means unlimited for that dimension.
type QuotaLimits struct {
	MaxExecutions  int           `json:"max_executions,omitempty"`
	MaxTotalTokens int           `json:"max_total_tokens,omitempty"`
	MaxTotalTime   time.Duration `json:"max_total_time,omitempty"`
}

// QuotaUsage is a snapshot of cumulative recorded use. Elapsed is wall
// clock since the tracker was created.
type QuotaUsage struct {
	Executions int
	Tokens     int
	Elapsed    time.Duration
}

// quotaCell is the mutex-guarded usage shared by a tracker and its clones.
type quotaCell struct {
	mu         sync.Mutex
	executions int
	tokens     int
	startTime  time.Time
}

// QuotaTracker enforces shared resource ceilings across an agent tree.
// Clones share the same usage cell, so consumption anywhere in the tree
// counts against the same limits. The time dimension is wall clock measured
// from tracker creation, not a sum of execution durations. Safe for
// concurrent use.
type QuotaTracker struct {
	limits QuotaLimits
	cell   *quotaCell
}

// NewQuotaTracker creates a tracker with a fresh usage cell. The time
// ceiling starts counting now.
func NewQuotaTracker(limits QuotaLimits) *QuotaTracker {
	return &QuotaTracker{limits: limits, cell: &quotaCell{startTime: time.Now()}}
}

// Clone returns a tracker with the same limits sharing this tracker's
// usage cell and start time.
func (q *QuotaTracker) Clone() *QuotaTracker {
	return &QuotaTracker{limits: q.limits, cell: q.cell}
}

// CheckAndReserve reports whether another execution is currently allowed.
// It reserves nothing: concurrent callers may all pass and push usage past
// a limit, which RecordExecution reports after the fact. The check is
// advisory admission control, not a hard guarantee.
func (q *QuotaTracker) CheckAndReserve() error {
	q.cell.mu.Lock()
	defer q.cell.mu.Unlock()

	if q.limits.MaxExecutions > 0 && q.cell.executions >= q.limits.MaxExecutions {
		return fmt.Errorf("%w: executions %d/%d", ErrQuotaExceeded, q.cell.executions, q.limits.MaxExecutions)
	}
	if q.limits.MaxTotalTokens > 0 && q.cell.tokens >= q.limits.MaxTotalTokens {
		return fmt.Errorf("%w: tokens %d/%d", ErrQuotaExceeded, q.cell.tokens, q.limits.MaxTotalTokens)
	}
	if q.limits.MaxTotalTime > 0 {
		if elapsed := time.Since(q.cell.startTime); elapsed >= q.limits.MaxTotalTime {
			return fmt.Errorf("%w: elapsed %s of %s", ErrQuotaExceeded, elapsed, q.limits.MaxTotalTime)
		}
	}
	return nil
}

// RecordExecution adds a completed execution's token consumption to the
// shared cell. The increment always lands; a non-nil error only reports
// that a ceiling has now been crossed. There is no rollback.
func (q *QuotaTracker) RecordExecution(tokens int) error {
	q.cell.mu.Lock()
	defer q.cell.mu.Unlock()

	q.cell.executions++
	q.cell.tokens += tokens

	if q.limits.MaxTotalTokens > 0 && q.cell.tokens > q.limits.MaxTotalTokens {
		return fmt.Errorf("%w: tokens %d/%d", ErrQuotaExceeded, q.cell.tokens, q.limits.MaxTotalTokens)
	}
	if q.limits.MaxTotalTime > 0 {
		if elapsed := time.Since(q.cell.startTime); elapsed >= q.limits.MaxTotalTime {
			return fmt.Errorf("%w: elapsed %s of %s", ErrQuotaExceeded, elapsed, q.limits.MaxTotalTime)
		}
	}
	return nil
}

// Usage returns a snapshot of cumulative recorded consumption.
func (q *QuotaTracker) Usage() QuotaUsage {
	q.cell.mu.Lock()
	defer q.cell.mu.Unlock()
	return QuotaUsage{
		Executions: q.cell.executions,
		Tokens:     q.cell.tokens,
		Elapsed:    time.Since(q.cell.startTime),
	}
}

// Limits returns the configured ceilings.
func (q *QuotaTracker) Limits() QuotaLimits { return q.limits }

// RemainingExecutions returns the executions left before the ceiling.
// ok is false when the dimension is unlimited.
func (q *QuotaTracker) RemainingExecutions() (n int, ok bool) {
	if q.limits.MaxExecutions <= 0 {
		return 0, false
	}
	q.cell.mu.Lock()
	defer q.cell.mu.Unlock()
	return max(0, q.limits.MaxExecutions-q.cell.executions), true
}

// RemainingTokens returns the tokens left before the ceiling.
// ok is false when the dimension is unlimited.
func (q *QuotaTracker) RemainingTokens() (n int, ok bool) {
	if q.limits.MaxTotalTokens <= 0 {
		return 0, false
	}
	q.cell.mu.Lock()
	defer q.cell.mu.Unlock()
	return max(0, q.limits.MaxTotalTokens-q.cell.tokens), true
}

// RemainingTime returns the wall clock left before the ceiling.
// ok is false when the dimension is unlimited.
func (q *QuotaTracker) RemainingTime() (d time.Duration, ok bool) {
	if q.limits.MaxTotalTime <= 0 {
		return 0, false
	}
	q.cell.mu.Lock()
	defer q.cell.mu.Unlock()
	return max(0, q.limits.MaxTotalTime-time.Since(q.cell.startTime)), true
}
