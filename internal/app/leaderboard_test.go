package app_test

import (
	"fmt"
	"testing"
	"time"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
)

func attemptsWith(pairs ...int) []domain.Attempt {
	out := make([]domain.Attempt, 0, len(pairs)/2)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.Attempt{
			ID:               int64(i/2 + 1),
			Score:            pairs[i],
			TimeSpentSeconds: pairs[i+1],
			CompletedAt:      base.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

func TestRankLeaderboardUsesBestAttemptPerOwner(t *testing.T) {
	owners := []domain.OwnerAttempts{
		{Owner: domain.Owner{ID: "b", Email: "b@example.com"}, Attempts: attemptsWith(95, 100)},
		{Owner: domain.Owner{ID: "a", Email: "a@example.com", DisplayName: "Alice"}, Attempts: attemptsWith(150, 300, 120, 200)},
		{Owner: domain.Owner{ID: "c", Email: "c@example.com"}},
	}

	entries := app.RankLeaderboard(owners, 10)
	if len(entries) != 2 {
		t.Fatalf("expected owners without attempts to be excluded, got %d entries", len(entries))
	}
	if entries[0].Email != "a@example.com" || entries[0].Score != 150 || entries[0].TimeSpentSeconds != 300 {
		t.Fatalf("expected Alice's 150 first, got %+v", entries[0])
	}
	if entries[0].Name == nil || *entries[0].Name != "Alice" {
		t.Fatalf("expected display name Alice, got %v", entries[0].Name)
	}
	if entries[1].Email != "b@example.com" || entries[1].Score != 95 || entries[1].Name != nil {
		t.Fatalf("expected b second with null name, got %+v", entries[1])
	}
}

func TestRankLeaderboardTieBreaksOnTimeSpent(t *testing.T) {
	owners := []domain.OwnerAttempts{
		{Owner: domain.Owner{ID: "slow", Email: "slow@example.com"}, Attempts: attemptsWith(100, 400)},
		{Owner: domain.Owner{ID: "fast", Email: "fast@example.com"}, Attempts: attemptsWith(100, 250)},
		{Owner: domain.Owner{ID: "self", Email: "self@example.com"}, Attempts: attemptsWith(100, 500, 100, 200)},
	}

	entries := app.RankLeaderboard(owners, 10)
	want := []string{"self@example.com", "fast@example.com", "slow@example.com"}
	for i, email := range want {
		if entries[i].Email != email {
			t.Fatalf("position %d: expected %s, got %s", i, email, entries[i].Email)
		}
	}
	if entries[0].TimeSpentSeconds != 200 {
		t.Fatalf("expected the faster attempt to be chosen, got %d", entries[0].TimeSpentSeconds)
	}
}

func TestRankLeaderboardCapsAtLimit(t *testing.T) {
	owners := make([]domain.OwnerAttempts, 0, 50)
	for i := 0; i < 50; i++ {
		owners = append(owners, domain.OwnerAttempts{
			Owner:    domain.Owner{ID: fmt.Sprintf("u%d", i), Email: fmt.Sprintf("u%d@example.com", i)},
			Attempts: attemptsWith(i*5, 100),
		})
	}

	entries := app.RankLeaderboard(owners, 0)
	if len(entries) != app.LeaderboardSize {
		t.Fatalf("expected %d entries, got %d", app.LeaderboardSize, len(entries))
	}
	if entries[0].Score != 245 || entries[9].Score != 200 {
		t.Fatalf("unexpected range %d..%d", entries[0].Score, entries[9].Score)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Score > entries[i-1].Score {
			t.Fatalf("entries out of order at %d", i)
		}
	}
}

func TestRankLeaderboardEmpty(t *testing.T) {
	if entries := app.RankLeaderboard(nil, 10); len(entries) != 0 {
		t.Fatalf("expected empty leaderboard, got %+v", entries)
	}
}
