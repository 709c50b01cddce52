package budget

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/breaktime/internal/storage"
	"github.com/goodtune/breaktime/internal/storage/bolt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInspector struct {
	url        string
	err        error
	navigated  []string
	navigErr   error
	focusCalls int
}

func (f *fakeInspector) FocusedURL(ctx context.Context) (string, error) {
	f.focusCalls++
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func (f *fakeInspector) Navigate(ctx context.Context, target string) error {
	if f.navigErr != nil {
		return f.navigErr
	}
	f.navigated = append(f.navigated, target)
	return nil
}

type fakeNotifier struct {
	titles []string
	bodies []string
}

func (f *fakeNotifier) Notify(ctx context.Context, title, body string) error {
	f.titles = append(f.titles, title)
	f.bodies = append(f.bodies, body)
	return nil
}

type trackerFixture struct {
	tracker   *Tracker
	state     storage.StateStore
	inspector *fakeInspector
	notifier  *fakeNotifier
	clock     *TestClock
}

func newTrackerFixture(t *testing.T, allowedMinutes int, entries []string) *trackerFixture {
	t.Helper()

	store, err := bolt.Open(filepath.Join(t.TempDir(), "breaktime.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	state := store.State()
	require.NoError(t, state.SetConfig(ctx, allowedMinutes, entries))

	clock := &TestClock{CurrentTime: time.UnixMilli(1_000_000)}
	require.NoError(t, state.SetCheckpoint(ctx, storage.NowMS(clock.Now())))

	inspector := &fakeInspector{}
	notifier := &fakeNotifier{}

	tracker, err := NewTracker(state, inspector, notifier, Config{BreakURL: testBreakURL}, zerolog.Nop())
	require.NoError(t, err)
	tracker.SetClock(clock)

	return &trackerFixture{
		tracker:   tracker,
		state:     state,
		inspector: inspector,
		notifier:  notifier,
		clock:     clock,
	}
}

func (f *trackerFixture) stateNow(t *testing.T) *storage.BudgetState {
	t.Helper()
	st, err := f.state.Get(context.Background())
	require.NoError(t, err)
	return st
}

func TestTracker_AccumulatesWhileMatchedFocused(t *testing.T) {
	f := newTrackerFixture(t, 30, []string{"example.com"})
	f.inspector.url = "https://sub.example.com/page"

	ctx := context.Background()

	f.clock.Advance(time.Minute)
	f.tracker.Tick(ctx)

	st := f.stateNow(t)
	assert.Equal(t, int64(60_000), st.TimeSpentMS)
	assert.Equal(t, storage.NowMS(f.clock.Now()), st.LastCheckMS)
	assert.Zero(t, st.BreakEndMS)

	f.clock.Advance(30 * time.Second)
	f.tracker.Tick(ctx)

	st = f.stateNow(t)
	assert.Equal(t, int64(90_000), st.TimeSpentMS)
}

func TestTracker_NoAccumulationOnUnmatchedPage(t *testing.T) {
	f := newTrackerFixture(t, 30, []string{"example.com"})
	f.inspector.url = "https://docs.golang.org/"

	ctx := context.Background()

	f.clock.Advance(time.Minute)
	f.tracker.Tick(ctx)

	st := f.stateNow(t)
	assert.Zero(t, st.TimeSpentMS)
	// Checkpoint still advances so the unmatched minute is never counted
	assert.Equal(t, storage.NowMS(f.clock.Now()), st.LastCheckMS)
}

func TestTracker_TwoTicksAtSameInstantDoNotDoubleCount(t *testing.T) {
	f := newTrackerFixture(t, 30, []string{"example.com"})
	f.inspector.url = "https://example.com/"

	ctx := context.Background()

	f.clock.Advance(time.Minute)
	f.tracker.Tick(ctx)
	f.tracker.Tick(ctx)

	st := f.stateNow(t)
	assert.Equal(t, int64(60_000), st.TimeSpentMS)
}

func TestTracker_LimitStartsBreakAndRedirects(t *testing.T) {
	f := newTrackerFixture(t, 1, []string{"example.com"})
	f.inspector.url = "https://example.com/watch"

	ctx := context.Background()

	f.clock.Advance(time.Minute)
	f.tracker.Tick(ctx)

	nowMS := storage.NowMS(f.clock.Now())
	st := f.stateNow(t)

	assert.Equal(t, int64(60_000), st.TimeSpentMS)
	assert.Equal(t, nowMS+60_000, st.BreakEndMS)
	require.Len(t, f.inspector.navigated, 1)
	assert.Equal(t, testBreakURL, f.inspector.navigated[0])
}

func TestTracker_BreakFreezesAccumulation(t *testing.T) {
	f := newTrackerFixture(t, 1, []string{"example.com"})
	f.inspector.url = "https://example.com/watch"

	ctx := context.Background()

	f.clock.Advance(time.Minute)
	f.tracker.Tick(ctx) // opens the break

	f.clock.Advance(30 * time.Second)
	f.tracker.Tick(ctx) // mid-break

	st := f.stateNow(t)
	assert.Equal(t, int64(60_000), st.TimeSpentMS)
	assert.Equal(t, storage.NowMS(f.clock.Now()), st.LastCheckMS)
}

func TestTracker_BreakExpiryResetsUsage(t *testing.T) {
	f := newTrackerFixture(t, 1, []string{"example.com"})
	f.inspector.url = "https://example.com/watch"

	ctx := context.Background()

	f.clock.Advance(time.Minute)
	f.tracker.Tick(ctx) // opens the break (ends one minute later)

	f.clock.Advance(30 * time.Second)
	f.tracker.Tick(ctx) // keeps the checkpoint warm during the break

	f.clock.Advance(30 * time.Second)
	f.tracker.Tick(ctx) // break has expired

	st := f.stateNow(t)
	assert.Zero(t, st.BreakEndMS)
	// Cleared to zero, then the 30s of matched focus since the last
	// checkpoint counts against the fresh cycle
	assert.Equal(t, int64(30_000), st.TimeSpentMS)
}

func TestTracker_WarningFiresOncePerCrossing(t *testing.T) {
	f := newTrackerFixture(t, 2, []string{"example.com"})
	f.inspector.url = "https://example.com/"

	ctx := context.Background()

	// 59s spent: remaining 61s, outside the warning window
	f.clock.Advance(59 * time.Second)
	f.tracker.Tick(ctx)
	assert.Empty(t, f.notifier.titles)

	// 61s spent: remaining 59s, inside the window
	f.clock.Advance(2 * time.Second)
	f.tracker.Tick(ctx)
	assert.Len(t, f.notifier.titles, 1)

	// Deeper into the window: no repeat
	f.clock.Advance(10 * time.Second)
	f.tracker.Tick(ctx)
	assert.Len(t, f.notifier.titles, 1)
}

func TestTracker_NavigationDuringBreakForcesRedirect(t *testing.T) {
	f := newTrackerFixture(t, 1, []string{"example.com"})
	f.inspector.url = "https://example.com/watch"

	ctx := context.Background()

	f.clock.Advance(time.Minute)
	f.tracker.Tick(ctx) // opens the break
	f.inspector.navigated = nil

	f.clock.Advance(5 * time.Second)
	f.tracker.HandleNavigation(ctx, "https://example.com/again")

	require.Len(t, f.inspector.navigated, 1)
	assert.Equal(t, testBreakURL, f.inspector.navigated[0])

	// Landing on the break destination itself must not loop
	f.tracker.HandleNavigation(ctx, testBreakURL)
	assert.Len(t, f.inspector.navigated, 1)
}

func TestTracker_InspectorFaultStillAdvancesCheckpoint(t *testing.T) {
	f := newTrackerFixture(t, 30, []string{"example.com"})
	f.inspector.err = assert.AnError

	ctx := context.Background()

	f.clock.Advance(time.Minute)
	f.tracker.Tick(ctx)

	st := f.stateNow(t)
	assert.Zero(t, st.TimeSpentMS)
	assert.Equal(t, storage.NowMS(f.clock.Now()), st.LastCheckMS)

	// Recovery: the faulty minute is gone for good, only time after the
	// advanced checkpoint counts
	f.inspector.err = nil
	f.inspector.url = "https://example.com/"
	f.clock.Advance(30 * time.Second)
	f.tracker.Tick(ctx)

	st = f.stateNow(t)
	assert.Equal(t, int64(30_000), st.TimeSpentMS)
}

// timeSpent is non-decreasing outside breaks across arbitrary tick
// sequences, and resets exactly once on break expiry.
func TestTracker_MonotonicOutsideBreak(t *testing.T) {
	f := newTrackerFixture(t, 5, []string{"example.com"})

	ctx := context.Background()

	urls := []string{
		"https://example.com/a",
		"https://docs.golang.org/",
		"https://example.com/b",
		"",
		"https://example.com/c",
	}

	var prev int64
	for i, url := range urls {
		f.inspector.url = url
		f.clock.Advance(time.Duration(10+i) * time.Second)
		f.tracker.Tick(ctx)

		st := f.stateNow(t)
		assert.GreaterOrEqual(t, st.TimeSpentMS, prev, "tick %d", i)
		prev = st.TimeSpentMS
	}
}
