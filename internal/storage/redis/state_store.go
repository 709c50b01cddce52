package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goodtune/breaktime/internal/storage"
	"github.com/redis/go-redis/v9"
)

// stateKey is the hash holding the shared budget state record.
const stateKey = "breaktime:state"

type stateStore struct {
	client *redis.Client
}

// Get retrieves the state record, creating it with defaults on first use.
func (s *stateStore) Get(ctx context.Context) (*storage.BudgetState, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	data, err := s.client.HGetAll(ctx, stateKey).Result()
	if err != nil {
		return nil, err
	}

	return parseBudgetState(data)
}

// ensure writes the install defaults; a no-op if the record already exists
// or another client won the race. Every accessor runs it so a mutator called
// first never leaves a partial hash behind.
func (s *stateStore) ensure(ctx context.Context) error {
	script := redis.NewScript(initStateScript)

	defaults := storage.DefaultState(time.Now())

	entries, err := json.Marshal(defaults.BlockedEntries)
	if err != nil {
		return fmt.Errorf("failed to encode blocked entries: %w", err)
	}

	keys := []string{stateKey}
	args := []interface{}{
		defaults.AllowedMinutes,
		string(entries),
		defaults.LastCheckMS,
	}

	return script.Run(ctx, s.client, keys, args...).Err()
}

// SetConfig replaces the budget and the match rule set.
func (s *stateStore) SetConfig(ctx context.Context, allowedMinutes int, blockedEntries []string) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}

	if blockedEntries == nil {
		blockedEntries = []string{}
	}

	entries, err := json.Marshal(blockedEntries)
	if err != nil {
		return fmt.Errorf("failed to encode blocked entries: %w", err)
	}

	return s.client.HSet(ctx, stateKey,
		"allowed_minutes", allowedMinutes,
		"blocked_entries", string(entries),
	).Err()
}

// MergeTimeSpent writes max(stored, candidateMS) and returns the winner.
func (s *stateStore) MergeTimeSpent(ctx context.Context, candidateMS int64) (int64, error) {
	if err := s.ensure(ctx); err != nil {
		return 0, err
	}

	script := redis.NewScript(mergeTimeSpentScript)

	result, err := script.Run(ctx, s.client, []string{stateKey}, candidateMS).Int64()
	if err != nil {
		return 0, err
	}

	return result, nil
}

// SetCheckpoint unconditionally records the evaluation timestamp.
func (s *stateStore) SetCheckpoint(ctx context.Context, tsMS int64) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}

	return s.client.HSet(ctx, stateKey, "last_check_ms", tsMS).Err()
}

// BeginBreak creates a break window unless one is already present.
func (s *stateStore) BeginBreak(ctx context.Context, endMS int64) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}

	script := redis.NewScript(beginBreakScript)
	return script.Run(ctx, s.client, []string{stateKey}, endMS).Err()
}

// ClearBreak removes the break window and zeroes accumulated usage.
func (s *stateStore) ClearBreak(ctx context.Context) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}

	script := redis.NewScript(clearBreakScript)
	return script.Run(ctx, s.client, []string{stateKey}).Err()
}
