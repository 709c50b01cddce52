package budget

import (
	"context"
	"fmt"
	"sync"

	"github.com/goodtune/breaktime/internal/metrics"
	"github.com/goodtune/breaktime/internal/rules"
	"github.com/goodtune/breaktime/internal/storage"
	"github.com/rs/zerolog"
)

// Snapshot is one rendered view of the budget for a display.
type Snapshot struct {
	Phase          Phase
	AllowedMinutes int
	TimeSpentMS    int64
	RemainingMS    int64
	Countdown      string // remaining budget, MM:SS, floored at zero
	BreakEndMS     int64  // 0 = no break window
	CountingDown   bool   // the local clock is advancing usage
	EditsLocked    bool   // config edits must be disabled
}

// Projector is the foreground estimation layer behind a live countdown
// display. It extrapolates usage locally between store reconciliations and
// is never the enforcement authority; that stays with the Tracker, the only
// component guaranteed to keep running when no display is open.
//
// All local state is rebuilt from the store on Open, so a display can be
// closed and reopened at any time without losing tracked time.
type Projector struct {
	state   storage.StateStore
	matcher *rules.Matcher
	clock   Clock
	logger  zerolog.Logger

	mu       sync.Mutex
	opened   bool
	localMS  int64
	lastMS   int64 // local clock's previous observation, 0 before first advance
	mirror   storage.BudgetState
	counting bool
}

// NewProjector creates a projector over the shared state store.
func NewProjector(state storage.StateStore, logger zerolog.Logger) (*Projector, error) {
	matcher, err := rules.NewMatcher(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create matcher: %w", err)
	}

	return &Projector{
		state:   state,
		matcher: matcher,
		clock:   RealClock{},
		logger:  logger.With().Str("component", "projector").Logger(),
	}, nil
}

// SetClock sets the clock (for testing).
func (p *Projector) SetClock(clock Clock) {
	p.clock = clock
}

// Open loads the persisted state and seeds the local mirror. Must be called
// when the display opens; nothing is assumed carried over from a previous
// open.
func (p *Projector) Open(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, err := p.state.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	p.mirror = *st
	p.localMS = st.TimeSpentMS
	p.lastMS = 0
	p.counting = false
	p.opened = true

	return nil
}

// Close tears the local clock down. The next Open rebuilds everything.
func (p *Projector) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.opened = false
	p.counting = false
	p.lastMS = 0
}

// Tick advances the local estimate by the wall-clock delta since the last
// call, reconciles with the store, and returns a fresh snapshot. Hosts call
// it about once per second while the display is open; focusedURL is the page
// currently focused ("" when none).
//
// Reconciliation is a max-merge in both directions: a local value ahead of
// the store is written back (closing the display never loses tracked time),
// and a stored value ahead of the local one is adopted (two open displays
// and the background tracker converge).
func (p *Projector) Tick(ctx context.Context, focusedURL string) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.opened {
		return Snapshot{}, fmt.Errorf("projector not open")
	}

	nowMS := storage.NowMS(p.clock.Now())

	// Local break-expiry detection mirrors the tracker's transition so the
	// display resets even when the background cycle hasn't fired yet.
	if p.mirror.BreakExpired(nowMS) {
		if err := p.state.ClearBreak(ctx); err != nil {
			metrics.StorageFaults.WithLabelValues("clear_break").Inc()
			p.logger.Error().Err(err).Msg("Failed to clear expired break")
		} else {
			p.mirror.BreakEndMS = 0
			p.mirror.TimeSpentMS = 0
			p.localMS = 0
			p.logger.Info().Msg("Break expired, local countdown reset")
		}
	}

	p.matcher.Update(p.mirror.BlockedEntries)
	_, matched := p.matcher.Match(focusedURL)

	// Fast local clock: extrapolate while a matched page is focused and no
	// break runs, without waiting for the store round-trip.
	p.counting = matched && !p.mirror.BreakActive(nowMS)
	if p.counting && p.lastMS > 0 && nowMS > p.lastMS {
		p.localMS += nowMS - p.lastMS
	}
	p.lastMS = nowMS

	if err := p.reconcile(ctx); err != nil {
		// Keep rendering from the local estimate; the next tick retries.
		p.logger.Warn().Err(err).Msg("Reconciliation with store failed")
	}

	return p.snapshot(nowMS), nil
}

// reconcile merges the local estimate with the store and refreshes the
// mirror of config, rules and break window.
func (p *Projector) reconcile(ctx context.Context) error {
	st, err := p.state.Get(ctx)
	if err != nil {
		metrics.StorageFaults.WithLabelValues("get").Inc()
		return err
	}

	// If the break window we were mirroring has been cleared by the
	// tracker, the stored usage reset wins over the stale local estimate;
	// merging it back would undo the reset.
	if p.mirror.BreakEndMS != 0 && st.BreakEndMS == 0 {
		p.localMS = st.TimeSpentMS
	}

	p.mirror = *st

	merged, err := p.state.MergeTimeSpent(ctx, p.localMS)
	if err != nil {
		metrics.StorageFaults.WithLabelValues("merge_time_spent").Inc()
		return err
	}

	// Adopt the stored value when it is ahead of the local estimate.
	p.localMS = merged
	if p.mirror.TimeSpentMS < merged {
		p.mirror.TimeSpentMS = merged
	}

	return nil
}

func (p *Projector) snapshot(nowMS int64) Snapshot {
	allowed := int64(p.mirror.AllowedMinutes) * 60_000

	remaining := allowed - p.localMS
	if remaining < 0 {
		remaining = 0
	}

	breakActive := p.mirror.BreakActive(nowMS)

	phase := PhaseIdle
	switch {
	case breakActive:
		phase = PhaseBreak
	case p.counting:
		phase = PhaseTracking
	}

	return Snapshot{
		Phase:          phase,
		AllowedMinutes: p.mirror.AllowedMinutes,
		TimeSpentMS:    p.localMS,
		RemainingMS:    remaining,
		Countdown:      FormatCountdown(remaining),
		BreakEndMS:     p.mirror.BreakEndMS,
		CountingDown:   p.counting,
		EditsLocked:    p.counting || breakActive,
	}
}

// FormatCountdown renders a millisecond duration as MM:SS, floored at zero.
func FormatCountdown(ms int64) string {
	if ms < 0 {
		ms = 0
	}

	totalSeconds := ms / 1000
	return fmt.Sprintf("%02d:%02d", totalSeconds/60, totalSeconds%60)
}
