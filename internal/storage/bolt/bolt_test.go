package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/goodtune/breaktime/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "breaktime.bolt"))
	if err != nil {
		t.Fatalf("Failed to open bolt store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestStateStore_DefaultsOnFirstGet(t *testing.T) {
	store := openTestStore(t)

	state, err := store.State().Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if state.AllowedMinutes != storage.DefaultAllowedMinutes {
		t.Errorf("Expected AllowedMinutes %d, got %d", storage.DefaultAllowedMinutes, state.AllowedMinutes)
	}
	if len(state.BlockedEntries) != 0 {
		t.Errorf("Expected empty BlockedEntries, got %v", state.BlockedEntries)
	}
	if state.TimeSpentMS != 0 || state.BreakEndMS != 0 {
		t.Errorf("Expected zero usage and no break, got %d / %d", state.TimeSpentMS, state.BreakEndMS)
	}
}

func TestStateStore_MergeTimeSpent(t *testing.T) {
	store := openTestStore(t)

	ctx := context.Background()
	st := store.State()

	tests := []struct {
		name      string
		candidate int64
		want      int64
	}{
		{"first write wins", 4000, 4000},
		{"smaller candidate loses", 1000, 4000},
		{"equal candidate keeps value", 4000, 4000},
		{"larger candidate wins", 7500, 7500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.MergeTimeSpent(ctx, tt.candidate)
			if err != nil {
				t.Fatalf("MergeTimeSpent failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("MergeTimeSpent(%d) = %d, want %d", tt.candidate, got, tt.want)
			}
		})
	}
}

func TestStateStore_BreakLifecycle(t *testing.T) {
	store := openTestStore(t)

	ctx := context.Background()
	st := store.State()

	if _, err := st.MergeTimeSpent(ctx, 1_800_000); err != nil {
		t.Fatalf("MergeTimeSpent failed: %v", err)
	}

	if err := st.BeginBreak(ctx, 90_000); err != nil {
		t.Fatalf("BeginBreak failed: %v", err)
	}

	// A second BeginBreak must not move the window
	if err := st.BeginBreak(ctx, 990_000); err != nil {
		t.Fatalf("BeginBreak failed: %v", err)
	}

	state, err := st.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if state.BreakEndMS != 90_000 {
		t.Errorf("Expected break end 90000, got %d", state.BreakEndMS)
	}
	if state.TimeSpentMS != 1_800_000 {
		t.Errorf("Expected usage untouched during break, got %d", state.TimeSpentMS)
	}

	if err := st.ClearBreak(ctx); err != nil {
		t.Fatalf("ClearBreak failed: %v", err)
	}

	state, err = st.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if state.BreakEndMS != 0 || state.TimeSpentMS != 0 {
		t.Errorf("Expected cleared break and zero usage, got %d / %d", state.BreakEndMS, state.TimeSpentMS)
	}
}

func TestStateStore_ConfigSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "breaktime.bolt")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open bolt store: %v", err)
	}

	ctx := context.Background()
	if err := store.State().SetConfig(ctx, 15, []string{"example.com", "videos"}); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to reopen bolt store: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	state, err := reopened.State().Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if state.AllowedMinutes != 15 {
		t.Errorf("Expected AllowedMinutes 15, got %d", state.AllowedMinutes)
	}
	if len(state.BlockedEntries) != 2 || state.BlockedEntries[0] != "example.com" {
		t.Errorf("Expected persisted entries, got %v", state.BlockedEntries)
	}
}
