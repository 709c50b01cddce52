package storage

import "time"

// Defaults applied when the state record is created for the first time.
const (
	DefaultAllowedMinutes = 30
)

// BudgetState is the persisted shared state record. It is the single source
// of truth shared by the background tracker and any open projector; all
// timestamps are wall-clock milliseconds since the Unix epoch.
type BudgetState struct {
	AllowedMinutes int      `json:"allowed_time_minutes"`
	BlockedEntries []string `json:"blocked_entries"`
	TimeSpentMS    int64    `json:"time_spent_ms"`
	BreakEndMS     int64    `json:"break_end_ms"` // 0 = no break window
	LastCheckMS    int64    `json:"last_check_ms"`
}

// AllowedMS returns the configured budget in milliseconds.
func (s *BudgetState) AllowedMS() int64 {
	return int64(s.AllowedMinutes) * 60_000
}

// BreakActive reports whether a break window exists and has not yet expired.
func (s *BudgetState) BreakActive(nowMS int64) bool {
	return s.BreakEndMS != 0 && nowMS < s.BreakEndMS
}

// BreakExpired reports whether a break window exists but its end time has
// passed. An expired window must be cleared (resetting usage) before any
// further accumulation.
func (s *BudgetState) BreakExpired(nowMS int64) bool {
	return s.BreakEndMS != 0 && nowMS >= s.BreakEndMS
}

// RemainingMS returns the unspent budget, floored at zero.
func (s *BudgetState) RemainingMS() int64 {
	remaining := s.AllowedMS() - s.TimeSpentMS
	if remaining < 0 {
		return 0
	}
	return remaining
}

// NowMS converts a time to the millisecond representation used in storage.
func NowMS(t time.Time) int64 {
	return t.UnixMilli()
}

// DefaultState returns the record written on first install.
func DefaultState(installedAt time.Time) *BudgetState {
	return &BudgetState{
		AllowedMinutes: DefaultAllowedMinutes,
		BlockedEntries: []string{},
		TimeSpentMS:    0,
		BreakEndMS:     0,
		LastCheckMS:    NowMS(installedAt),
	}
}
