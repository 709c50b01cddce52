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

func newProjectorFixture(t *testing.T, allowedMinutes int, entries []string) (*Projector, storage.StateStore, *TestClock) {
	t.Helper()

	store, err := bolt.Open(filepath.Join(t.TempDir(), "breaktime.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	state := store.State()
	require.NoError(t, state.SetConfig(context.Background(), allowedMinutes, entries))

	projector, err := NewProjector(state, zerolog.Nop())
	require.NoError(t, err)

	clock := &TestClock{CurrentTime: time.UnixMilli(1_000_000)}
	projector.SetClock(clock)

	return projector, state, clock
}

func TestProjector_OpenRebuildsFromStore(t *testing.T) {
	projector, state, _ := newProjectorFixture(t, 10, []string{"example.com"})

	ctx := context.Background()
	_, err := state.MergeTimeSpent(ctx, 90_000)
	require.NoError(t, err)

	require.NoError(t, projector.Open(ctx))

	snap, err := projector.Tick(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, 10, snap.AllowedMinutes)
	assert.Equal(t, int64(90_000), snap.TimeSpentMS)
	assert.Equal(t, int64(510_000), snap.RemainingMS)
	assert.Equal(t, "08:30", snap.Countdown)
	assert.False(t, snap.CountingDown)
	assert.False(t, snap.EditsLocked)
}

func TestProjector_TickRequiresOpen(t *testing.T) {
	projector, _, _ := newProjectorFixture(t, 10, nil)

	_, err := projector.Tick(context.Background(), "")
	assert.Error(t, err)
}

func TestProjector_CountdownAdvancesOnMatchedFocus(t *testing.T) {
	projector, _, clock := newProjectorFixture(t, 10, []string{"example.com"})

	ctx := context.Background()
	require.NoError(t, projector.Open(ctx))

	// First tick seeds the local clock; no delta yet.
	snap, err := projector.Tick(ctx, "https://example.com/")
	require.NoError(t, err)
	assert.Zero(t, snap.TimeSpentMS)
	assert.True(t, snap.CountingDown)
	assert.True(t, snap.EditsLocked)
	assert.Equal(t, PhaseTracking, snap.Phase)

	clock.Advance(time.Second)
	snap, err = projector.Tick(ctx, "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, int64(1_000), snap.TimeSpentMS)
	assert.Equal(t, "09:59", snap.Countdown)

	clock.Advance(2 * time.Second)
	snap, err = projector.Tick(ctx, "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, int64(3_000), snap.TimeSpentMS)
}

func TestProjector_FrozenOnUnmatchedFocus(t *testing.T) {
	projector, _, clock := newProjectorFixture(t, 10, []string{"example.com"})

	ctx := context.Background()
	require.NoError(t, projector.Open(ctx))

	_, err := projector.Tick(ctx, "https://docs.golang.org/")
	require.NoError(t, err)

	clock.Advance(5 * time.Second)
	snap, err := projector.Tick(ctx, "https://docs.golang.org/")
	require.NoError(t, err)

	assert.Zero(t, snap.TimeSpentMS)
	assert.False(t, snap.CountingDown)
	assert.False(t, snap.EditsLocked)
	assert.Equal(t, PhaseIdle, snap.Phase)
}

func TestProjector_LocalAdvancePersistedToStore(t *testing.T) {
	projector, state, clock := newProjectorFixture(t, 10, []string{"example.com"})

	ctx := context.Background()
	require.NoError(t, projector.Open(ctx))

	_, err := projector.Tick(ctx, "https://example.com/")
	require.NoError(t, err)
	clock.Advance(4 * time.Second)
	_, err = projector.Tick(ctx, "https://example.com/")
	require.NoError(t, err)

	// Closing the display loses nothing; the estimate was merged on tick.
	projector.Close()

	st, err := state.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4_000), st.TimeSpentMS)
}

func TestProjector_AdoptsStoredValueWhenAhead(t *testing.T) {
	projector, state, clock := newProjectorFixture(t, 10, []string{"example.com"})

	ctx := context.Background()
	require.NoError(t, projector.Open(ctx))

	_, err := projector.Tick(ctx, "https://example.com/")
	require.NoError(t, err)

	// Another observer raced ahead of the local estimate.
	_, err = state.MergeTimeSpent(ctx, 240_000)
	require.NoError(t, err)

	clock.Advance(time.Second)
	snap, err := projector.Tick(ctx, "https://example.com/")
	require.NoError(t, err)

	assert.Equal(t, int64(240_000), snap.TimeSpentMS)
	assert.Equal(t, "06:00", snap.Countdown)
}

func TestProjector_BreakWindowLocksEditsAndFreezesClock(t *testing.T) {
	projector, state, clock := newProjectorFixture(t, 10, []string{"example.com"})

	ctx := context.Background()

	nowMS := storage.NowMS(clock.Now())
	require.NoError(t, state.BeginBreak(ctx, nowMS+60_000))

	require.NoError(t, projector.Open(ctx))

	snap, err := projector.Tick(ctx, "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, PhaseBreak, snap.Phase)
	assert.True(t, snap.EditsLocked)
	assert.False(t, snap.CountingDown)

	clock.Advance(10 * time.Second)
	snap, err = projector.Tick(ctx, "https://example.com/")
	require.NoError(t, err)
	assert.Zero(t, snap.TimeSpentMS)
}

func TestProjector_BreakExpiryResetsLocally(t *testing.T) {
	projector, state, clock := newProjectorFixture(t, 1, []string{"example.com"})

	ctx := context.Background()

	_, err := state.MergeTimeSpent(ctx, 60_000)
	require.NoError(t, err)
	nowMS := storage.NowMS(clock.Now())
	require.NoError(t, state.BeginBreak(ctx, nowMS+60_000))

	require.NoError(t, projector.Open(ctx))

	// Past the window end: the projector clears the break itself instead
	// of waiting for the next background cycle.
	clock.Advance(61 * time.Second)
	snap, err := projector.Tick(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Zero(t, snap.BreakEndMS)
	assert.Zero(t, snap.TimeSpentMS)
	assert.Equal(t, "01:00", snap.Countdown)

	st, err := state.Get(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.BreakEndMS)
	assert.Zero(t, st.TimeSpentMS)
}

func TestFormatCountdown(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "00:00"},
		{-500, "00:00"},
		{999, "00:00"},
		{1_000, "00:01"},
		{59_000, "00:59"},
		{60_000, "01:00"},
		{61_500, "01:01"},
		{3_599_000, "59:59"},
		{3_600_000, "60:00"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCountdown(tt.ms))
	}
}
