package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goodtune/breaktime/internal/storage"
	"go.etcd.io/bbolt"
)

type stateStore struct {
	db *bbolt.DB
}

// load reads and decodes the state record inside a transaction. Returns
// storage.ErrNotFound when the record has never been written.
func load(tx *bbolt.Tx) (*storage.BudgetState, error) {
	data := tx.Bucket([]byte(bucketState)).Get([]byte(keyState))
	if data == nil {
		return nil, storage.ErrNotFound
	}

	var state storage.BudgetState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode state record: %w", err)
	}
	if state.BlockedEntries == nil {
		state.BlockedEntries = []string{}
	}

	return &state, nil
}

// save encodes and writes the state record inside a transaction.
func save(tx *bbolt.Tx, state *storage.BudgetState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state record: %w", err)
	}

	return tx.Bucket([]byte(bucketState)).Put([]byte(keyState), data)
}

// loadOrInit reads the record, creating it with install defaults on first use.
func loadOrInit(tx *bbolt.Tx) (*storage.BudgetState, error) {
	state, err := load(tx)
	if err == nil {
		return state, nil
	}
	if err != storage.ErrNotFound {
		return nil, err
	}

	state = storage.DefaultState(time.Now())
	if err := save(tx, state); err != nil {
		return nil, err
	}

	return state, nil
}

// Get returns the current state, creating it with defaults on first use.
func (s *stateStore) Get(ctx context.Context) (*storage.BudgetState, error) {
	var state *storage.BudgetState

	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		state, err = loadOrInit(tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	return state, nil
}

// SetConfig replaces the budget and the match rule set.
func (s *stateStore) SetConfig(ctx context.Context, allowedMinutes int, blockedEntries []string) error {
	if blockedEntries == nil {
		blockedEntries = []string{}
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		state, err := loadOrInit(tx)
		if err != nil {
			return err
		}

		state.AllowedMinutes = allowedMinutes
		state.BlockedEntries = blockedEntries

		return save(tx, state)
	})
}

// MergeTimeSpent writes max(stored, candidateMS) and returns the winner.
func (s *stateStore) MergeTimeSpent(ctx context.Context, candidateMS int64) (int64, error) {
	var merged int64

	err := s.db.Update(func(tx *bbolt.Tx) error {
		state, err := loadOrInit(tx)
		if err != nil {
			return err
		}

		merged = state.TimeSpentMS
		if candidateMS > merged {
			merged = candidateMS
			state.TimeSpentMS = candidateMS
			return save(tx, state)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return merged, nil
}

// SetCheckpoint unconditionally records the evaluation timestamp.
func (s *stateStore) SetCheckpoint(ctx context.Context, tsMS int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		state, err := loadOrInit(tx)
		if err != nil {
			return err
		}

		state.LastCheckMS = tsMS

		return save(tx, state)
	})
}

// BeginBreak creates a break window unless one is already present.
func (s *stateStore) BeginBreak(ctx context.Context, endMS int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		state, err := loadOrInit(tx)
		if err != nil {
			return err
		}

		// Never extend or replace an existing window
		if state.BreakEndMS != 0 {
			return nil
		}

		state.BreakEndMS = endMS

		return save(tx, state)
	})
}

// ClearBreak removes the break window and zeroes accumulated usage.
func (s *stateStore) ClearBreak(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		state, err := loadOrInit(tx)
		if err != nil {
			return err
		}

		if state.BreakEndMS == 0 && state.TimeSpentMS == 0 {
			return nil
		}

		state.BreakEndMS = 0
		state.TimeSpentMS = 0

		return save(tx, state)
	})
}
