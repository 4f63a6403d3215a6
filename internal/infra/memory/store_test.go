package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"trivia-quiz-service/internal/domain"
)

func TestStoreOwners(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	if _, err := store.FindByEmail(ctx, "a@example.com"); !errors.Is(err, domain.ErrOwnerNotFound) {
		t.Fatalf("expected ErrOwnerNotFound, got %v", err)
	}
	first, err := store.Upsert(ctx, domain.Identity{Email: "a@example.com"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	again, err := store.Upsert(ctx, domain.Identity{Email: "a@example.com", Name: "Alice"})
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if again.ID != first.ID || again.DisplayName != "Alice" {
		t.Fatalf("expected same owner with refreshed name, got %+v", again)
	}
	if count, _ := store.Count(ctx); count != 1 {
		t.Fatalf("expected 1 owner, got %d", count)
	}
}

func TestStoreAttempts(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewStoreWithClock(func() time.Time { return now })

	a, _ := store.Upsert(ctx, domain.Identity{Email: "a@example.com"})
	_, _ = store.Upsert(ctx, domain.Identity{Email: "b@example.com"})

	attempt, err := store.InsertAttempt(ctx, a.ID, domain.AttemptSummary{Score: 40, CorrectCount: 4, TimeSpentSeconds: 90})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if attempt.ID != 1 || !attempt.CompletedAt.Equal(now) || attempt.OwnerID != a.ID {
		t.Fatalf("unexpected attempt %+v", attempt)
	}

	found, err := store.FindAttemptsByOwner(ctx, a.ID)
	if err != nil || len(found) != 1 {
		t.Fatalf("expected 1 attempt, got %d (%v)", len(found), err)
	}
	found[0].Score = 999
	again, _ := store.FindAttemptsByOwner(ctx, a.ID)
	if again[0].Score != 40 {
		t.Fatalf("expected stored attempt to be isolated from callers")
	}

	owners, err := store.FindAllOwnersWithAttempts(ctx)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(owners) != 2 || len(owners[0].Attempts) != 1 || len(owners[1].Attempts) != 0 {
		t.Fatalf("unexpected owners %+v", owners)
	}
}

func TestStateStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStateStore()

	if _, found, err := store.Load(ctx); found || err != nil {
		t.Fatalf("expected empty store, found=%v err=%v", found, err)
	}
	selected := "8"
	state := domain.SessionState{Questions: SampleQuestions(), CurrentIndex: 2, Score: 15, SelectedAnswer: &selected}
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}
	*state.SelectedAnswer = "changed"

	loaded, found, err := store.Load(ctx)
	if err != nil || !found {
		t.Fatalf("expected state, found=%v err=%v", found, err)
	}
	if loaded.CurrentIndex != 2 || loaded.Score != 15 || *loaded.SelectedAnswer != "8" {
		t.Fatalf("unexpected loaded state %+v", loaded)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, found, _ := store.Load(ctx); found {
		t.Fatalf("expected cleared store")
	}
	if store.Saves() != 1 {
		t.Fatalf("expected 1 save, got %d", store.Saves())
	}
}

func TestStaticQuestionSource(t *testing.T) {
	source := NewStaticQuestionSource(SampleQuestions())
	batch, err := source.FetchQuestionBatch(context.Background(), domain.BatchRequest{Amount: 3})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(batch))
	}
	for _, q := range batch {
		if !q.Offers(q.CorrectAnswer) || len(q.PresentedOrder) != 4 {
			t.Fatalf("malformed sample question %+v", q)
		}
	}

	empty := NewStaticQuestionSource(nil)
	if _, err := empty.FetchQuestionBatch(context.Background(), domain.BatchRequest{}); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}
