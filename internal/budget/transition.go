package budget

import (
	"github.com/goodtune/breaktime/internal/storage"
)

// Phase is the state the tracker lands in after an evaluation.
type Phase string

const (
	// PhaseIdle: no matched page is focused and no break is running.
	// Initial state and the resting state after a break expires.
	PhaseIdle Phase = "IDLE"

	// PhaseTracking: a matched page is focused and time is accumulating.
	PhaseTracking Phase = "TRACKING"

	// PhaseBreak: the budget is exhausted and a cooldown window is running.
	PhaseBreak Phase = "BREAK"
)

// Trigger names the event that caused an evaluation.
type Trigger string

const (
	// TriggerTick is the scheduled periodic evaluation.
	TriggerTick Trigger = "tick"

	// TriggerNavigation is an opportunistic evaluation on a page
	// navigation event, shortening the enforcement detection window.
	TriggerNavigation Trigger = "navigation"
)

// DefaultWarningWindowMS is the remaining-budget band, in milliseconds,
// inside which a low-budget warning fires.
const DefaultWarningWindowMS = 60_000

// Input carries everything one evaluation needs besides the stored state.
type Input struct {
	NowMS      int64
	Trigger    Trigger
	FocusedURL string // "" = no page has focus
	Matched    bool   // whether FocusedURL matches a rule

	// Warned is the carried once-per-crossing flag: true when the
	// low-budget warning already fired for the current cycle.
	Warned bool

	BreakURL        string
	WarningWindowMS int64 // 0 = DefaultWarningWindowMS
}

// Outcome describes the side effects one evaluation requires. The transition
// function itself performs none of them; the tracker (or a dry-run caller)
// applies them against the store, the page and the notifier.
type Outcome struct {
	Phase Phase

	// ClearBreak: remove the break window and reset stored usage to zero.
	// Must be applied before TimeSpentMS.
	ClearBreak bool

	// ElapsedMS is the time accumulated by this evaluation.
	ElapsedMS int64

	// TimeSpentMS is the usage value to merge into the store. Only
	// meaningful when PersistTimeSpent is set.
	TimeSpentMS      int64
	PersistTimeSpent bool

	// BeginBreakEndMS, when non-zero, is the end of a new break window.
	BeginBreakEndMS int64

	// RedirectTo, when non-empty, is the URL the focused page must be
	// commanded to navigate to.
	RedirectTo string

	// Warn requests a low-budget notification; RemainingMS is the budget
	// left at emission time.
	Warn        bool
	RemainingMS int64

	// Warned is the new value of the once-per-crossing flag.
	Warned bool

	// CheckpointMS is always written back, on success and failure paths
	// alike, so elapsed time is never counted twice.
	CheckpointMS int64
}

// Evaluate is the single synchronous transition function for both triggers.
// It inspects the stored state and the input and returns the side effects to
// apply, in order: clear break, merge usage, begin break, warn, redirect,
// checkpoint.
func Evaluate(st *storage.BudgetState, in Input) Outcome {
	out := Outcome{
		Phase:        PhaseIdle,
		Warned:       in.Warned,
		CheckpointMS: in.NowMS,
	}

	warningWindow := in.WarningWindowMS
	if warningWindow == 0 {
		warningWindow = DefaultWarningWindowMS
	}

	// Active break: no accumulation, only the checkpoint moves. A
	// navigation to a matched page is forced back to the break
	// destination, unless it already is the destination (loop prevention).
	if st.BreakActive(in.NowMS) {
		out.Phase = PhaseBreak
		if in.Trigger == TriggerNavigation && in.Matched && in.FocusedURL != in.BreakURL {
			out.RedirectTo = in.BreakURL
		}
		return out
	}

	spent := st.TimeSpentMS

	// Expired break: clear the window and reset usage before any
	// accumulation in this same evaluation.
	if st.BreakExpired(in.NowMS) {
		out.ClearBreak = true
		out.Warned = false
		spent = 0
	}

	// No focused page, or a page no rule matches: nothing accumulates.
	if in.FocusedURL == "" || !in.Matched {
		return out
	}

	// Accumulate from the stored checkpoint. An absent checkpoint (or one
	// ahead of now, after clock adjustments) contributes zero.
	elapsed := in.NowMS - st.LastCheckMS
	if st.LastCheckMS == 0 || elapsed < 0 {
		elapsed = 0
	}

	out.ElapsedMS = elapsed
	spent += elapsed
	out.TimeSpentMS = spent
	out.PersistTimeSpent = true

	allowed := st.AllowedMS()

	// Budget exhausted: open the break window and send the page away.
	if spent >= allowed {
		out.Phase = PhaseBreak
		out.BeginBreakEndMS = in.NowMS + allowed
		out.Warned = false
		if in.FocusedURL != in.BreakURL {
			out.RedirectTo = in.BreakURL
		}
		return out
	}

	out.Phase = PhaseTracking
	out.RemainingMS = allowed - spent

	// Low-budget warning, once per threshold crossing. The flag re-arms
	// when remaining leaves the window again (e.g. the budget was raised).
	if out.RemainingMS <= warningWindow {
		if !in.Warned {
			out.Warn = true
			out.Warned = true
		}
	} else {
		out.Warned = false
	}

	return out
}
