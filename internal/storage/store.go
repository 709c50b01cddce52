package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	State() StateStore
}

// StateStore manages the shared budget state record.
//
// Two independent writers (the background tracker and any open projector)
// may read-then-write this record concurrently, so every mutator is a merge
// rather than a blind overwrite: MergeTimeSpent takes the maximum of the
// stored and candidate values, BeginBreak never extends an unexpired window,
// and ClearBreak is idempotent. There are no cross-process locks.
type StateStore interface {
	// Get returns the current state, creating it with defaults on first use.
	Get(ctx context.Context) (*BudgetState, error)

	// SetConfig replaces the budget and the match rule set. Callers are
	// expected to withhold this while tracking or a break is in progress.
	SetConfig(ctx context.Context, allowedMinutes int, blockedEntries []string) error

	// MergeTimeSpent writes max(stored, candidateMS) and returns the winner.
	MergeTimeSpent(ctx context.Context, candidateMS int64) (int64, error)

	// SetCheckpoint unconditionally records the time of the last evaluation.
	SetCheckpoint(ctx context.Context, tsMS int64) error

	// BeginBreak creates a break window ending at endMS. If an unexpired
	// window already exists it is left untouched; windows are never extended.
	BeginBreak(ctx context.Context, endMS int64) error

	// ClearBreak removes the break window and resets accumulated usage to
	// zero in a single atomic step. Calling it with no window present is a
	// no-op.
	ClearBreak(ctx context.Context) error
}
