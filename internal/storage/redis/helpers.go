package redis

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/goodtune/breaktime/internal/storage"
)

// parseBudgetState converts the Redis hash to a BudgetState
func parseBudgetState(data map[string]string) (*storage.BudgetState, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	allowedMinutes, err := strconv.Atoi(data["allowed_minutes"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse allowed_minutes: %w", err)
	}

	var blockedEntries []string
	if raw := data["blocked_entries"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &blockedEntries); err != nil {
			return nil, fmt.Errorf("failed to parse blocked_entries: %w", err)
		}
	}
	if blockedEntries == nil {
		blockedEntries = []string{}
	}

	timeSpent, err := strconv.ParseInt(data["time_spent_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse time_spent_ms: %w", err)
	}

	breakEnd, err := strconv.ParseInt(data["break_end_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse break_end_ms: %w", err)
	}

	lastCheck, err := strconv.ParseInt(data["last_check_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last_check_ms: %w", err)
	}

	return &storage.BudgetState{
		AllowedMinutes: allowedMinutes,
		BlockedEntries: blockedEntries,
		TimeSpentMS:    timeSpent,
		BreakEndMS:     breakEnd,
		LastCheckMS:    lastCheck,
	}, nil
}
