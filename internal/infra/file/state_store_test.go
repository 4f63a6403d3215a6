package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/memory"
)

func TestStateStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	store := NewStateStore(path)

	if _, found, err := store.Load(ctx); found || err != nil {
		t.Fatalf("expected no state, found=%v err=%v", found, err)
	}

	state := domain.SessionState{
		Questions:        memory.SampleQuestions(),
		CurrentIndex:     2,
		Score:            15,
		CorrectCount:     2,
		WrongCount:       1,
		RemainingSeconds: 480,
		StartedAt:        time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, found, err := store.Load(ctx)
	if err != nil || !found {
		t.Fatalf("expected state, found=%v err=%v", found, err)
	}
	if loaded.CurrentIndex != 2 || loaded.RemainingSeconds != 480 || !loaded.StartedAt.Equal(state.StartedAt) {
		t.Fatalf("unexpected loaded state %+v", loaded)
	}
	if loaded.SelectedAnswer != nil {
		t.Fatalf("expected no selected answer")
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("expected only the state file, got %d entries", len(entries))
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if _, found, _ := store.Load(ctx); found {
		t.Fatalf("expected no state after clear")
	}
}

func TestStateStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, _, err := NewStateStore(path).Load(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestPendingSummaryStore(t *testing.T) {
	store := NewPendingSummaryStore(filepath.Join(t.TempDir(), "pending.json"))
	if _, found, err := store.Load(); found || err != nil {
		t.Fatalf("expected nothing pending, found=%v err=%v", found, err)
	}
	summary := domain.AttemptSummary{Score: 80, CorrectCount: 12, WrongCount: 8, TimeSpentSeconds: 600}
	if err := store.Save(summary); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, found, err := store.Load()
	if err != nil || !found || loaded != summary {
		t.Fatalf("load = (%+v, %v, %v)", loaded, found, err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, found, _ := store.Load(); found {
		t.Fatalf("expected pending summary cleared")
	}
}
