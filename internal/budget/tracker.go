package budget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/breaktime/internal/browser"
	"github.com/goodtune/breaktime/internal/metrics"
	"github.com/goodtune/breaktime/internal/notify"
	"github.com/goodtune/breaktime/internal/rules"
	"github.com/goodtune/breaktime/internal/storage"
	"github.com/rs/zerolog"
)

// DefaultBreakURL is where matched pages are sent during a break.
const DefaultBreakURL = "about:blank"

// Config holds tracker configuration.
type Config struct {
	BreakURL      string
	WarningWindow time.Duration
}

// Tracker is the background evaluator. It is the sole enforcement
// authority: projectors only estimate, the tracker accumulates, warns,
// opens break windows and redirects.
//
// Invocations are serialized by a mutex so a scheduled tick and a
// navigation event can never interleave their read-merge-write sequences.
type Tracker struct {
	state     storage.StateStore
	matcher   *rules.Matcher
	inspector browser.Inspector
	notifier  notify.Notifier
	clock     Clock
	logger    zerolog.Logger

	breakURL        string
	warningWindowMS int64

	mu     sync.Mutex
	warned bool
	phase  Phase
}

// NewTracker creates a background budget tracker.
func NewTracker(state storage.StateStore, inspector browser.Inspector, notifier notify.Notifier, cfg Config, logger zerolog.Logger) (*Tracker, error) {
	matcher, err := rules.NewMatcher(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create matcher: %w", err)
	}

	breakURL := cfg.BreakURL
	if breakURL == "" {
		breakURL = DefaultBreakURL
	}

	warningWindowMS := cfg.WarningWindow.Milliseconds()
	if warningWindowMS == 0 {
		warningWindowMS = DefaultWarningWindowMS
	}

	return &Tracker{
		state:           state,
		matcher:         matcher,
		inspector:       inspector,
		notifier:        notifier,
		clock:           RealClock{},
		logger:          logger.With().Str("component", "tracker").Logger(),
		breakURL:        breakURL,
		warningWindowMS: warningWindowMS,
		phase:           PhaseIdle,
	}, nil
}

// Phase returns the phase the most recent evaluation landed in.
func (t *Tracker) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// SetClock sets the clock (for testing).
func (t *Tracker) SetClock(clock Clock) {
	t.clock = clock
}

// Tick runs one scheduled evaluation. Faults are logged and swallowed; the
// checkpoint always advances so the next successful cycle cannot
// double-count the gap.
func (t *Tracker) Tick(ctx context.Context) {
	t.run(ctx, TriggerTick, "", false)
}

// HandleNavigation runs an opportunistic evaluation for a page navigation
// event, using the navigated-to URL as the focused page.
func (t *Tracker) HandleNavigation(ctx context.Context, url string) {
	t.run(ctx, TriggerNavigation, url, true)
}

func (t *Tracker) run(ctx context.Context, trigger Trigger, url string, urlKnown bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	nowMS := storage.NowMS(t.clock.Now())

	// The checkpoint advances on every invocation, success or failure.
	defer func() {
		if err := t.state.SetCheckpoint(ctx, nowMS); err != nil {
			metrics.StorageFaults.WithLabelValues("set_checkpoint").Inc()
			t.logger.Error().Err(err).Msg("Failed to persist checkpoint")
		}
	}()

	st, err := t.state.Get(ctx)
	if err != nil {
		metrics.StorageFaults.WithLabelValues("get").Inc()
		t.logger.Error().Err(err).Msg("Failed to read state, skipping evaluation")
		return
	}

	t.matcher.Update(st.BlockedEntries)

	if !urlKnown {
		url, err = t.inspector.FocusedURL(ctx)
		switch {
		case err == nil:
		case errors.Is(err, browser.ErrNoFocusedPage):
			url = ""
		default:
			metrics.PageFaults.Inc()
			t.logger.Warn().Err(err).Msg("Failed to inspect focused page")
			url = ""
		}
	}

	pattern, matched := t.matcher.Match(url)

	out := Evaluate(st, Input{
		NowMS:           nowMS,
		Trigger:         trigger,
		FocusedURL:      url,
		Matched:         matched,
		Warned:          t.warned,
		BreakURL:        t.breakURL,
		WarningWindowMS: t.warningWindowMS,
	})

	t.apply(ctx, st, out, pattern)
}

// apply executes the side effects an evaluation described, in order.
func (t *Tracker) apply(ctx context.Context, st *storage.BudgetState, out Outcome, pattern string) {
	t.warned = out.Warned
	t.phase = out.Phase

	if out.ClearBreak {
		if err := t.state.ClearBreak(ctx); err != nil {
			metrics.StorageFaults.WithLabelValues("clear_break").Inc()
			t.logger.Error().Err(err).Msg("Failed to clear expired break")
			// Leave the stored window in place; the next cycle retries.
			return
		}

		metrics.BreakActive.Set(0)
		metrics.TimeSpentMS.Set(0)
		t.logger.Info().Msg("Break expired, usage reset")
	}

	if out.PersistTimeSpent {
		merged, err := t.state.MergeTimeSpent(ctx, out.TimeSpentMS)
		if err != nil {
			metrics.StorageFaults.WithLabelValues("merge_time_spent").Inc()
			t.logger.Error().Err(err).Msg("Failed to persist accumulated time")
		} else {
			metrics.TimeSpentMS.Set(float64(merged))
			if out.ElapsedMS > 0 {
				metrics.TrackedSecondsTotal.Add(float64(out.ElapsedMS) / 1000.0)
			}

			t.logger.Debug().
				Str("pattern", pattern).
				Int64("elapsed_ms", out.ElapsedMS).
				Int64("time_spent_ms", merged).
				Msg("Accumulated tracked time")
		}
	}

	if out.BeginBreakEndMS > 0 {
		if err := t.state.BeginBreak(ctx, out.BeginBreakEndMS); err != nil {
			metrics.StorageFaults.WithLabelValues("begin_break").Inc()
			t.logger.Error().Err(err).Msg("Failed to create break window")
		} else {
			metrics.BreaksStartedTotal.Inc()
			metrics.BreakActive.Set(1)

			t.logger.Info().
				Int64("break_end_ms", out.BeginBreakEndMS).
				Int("allowed_minutes", st.AllowedMinutes).
				Msg("Budget exhausted, break started")
		}
	}

	if out.Warn {
		metrics.WarningsTotal.Inc()

		remaining := time.Duration(out.RemainingMS) * time.Millisecond
		msg := fmt.Sprintf("Less than %s of browsing time left before your break.", remaining.Round(time.Second))
		if err := t.notifier.Notify(ctx, "Break coming up", msg); err != nil {
			t.logger.Warn().Err(err).Msg("Failed to deliver warning notification")
		}
	}

	if out.RedirectTo != "" {
		if err := t.inspector.Navigate(ctx, out.RedirectTo); err != nil {
			metrics.PageFaults.Inc()
			t.logger.Warn().Err(err).Str("target", out.RedirectTo).Msg("Failed to redirect focused page")
		} else {
			metrics.RedirectsTotal.Inc()
			t.logger.Info().Str("target", out.RedirectTo).Msg("Focused page redirected to break destination")
		}
	}

	metrics.TicksTotal.WithLabelValues(string(out.Phase)).Inc()
}
