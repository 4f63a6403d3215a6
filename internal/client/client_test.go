package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"trivia-quiz-service/internal/domain"
)

func TestSubmitAttemptSendsSummaryWithToken(t *testing.T) {
	var got domain.AttemptSummary
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/quiz/attempt" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "Quiz attempt saved successfully",
			"attempt": domain.Attempt{ID: 3, Score: got.Score, TimeSpentSeconds: got.TimeSpentSeconds},
		})
	}))
	defer server.Close()

	c := New(server.URL+"/", "tok", server.Client())
	summary := domain.AttemptSummary{Score: 80, CorrectCount: 12, WrongCount: 8, TimeSpentSeconds: 420}
	attempt, err := c.SubmitAttempt(context.Background(), summary)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got != summary {
		t.Fatalf("server received %+v, want %+v", got, summary)
	}
	if attempt.ID != 3 || attempt.Score != 80 {
		t.Fatalf("unexpected attempt %+v", attempt)
	}
}

func TestStatusCodesMapToDomainErrors(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrUnauthenticated},
		{http.StatusBadRequest, domain.ErrValidation},
		{http.StatusNotFound, domain.ErrOwnerNotFound},
		{http.StatusInternalServerError, ErrServiceUnavailable},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "nope"})
		}))
		c := New(server.URL, "", server.Client())
		_, err := c.SubmitAttempt(context.Background(), domain.AttemptSummary{})
		server.Close()

		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Message != "nope" {
			t.Fatalf("status %d: expected APIError with message, got %v", tc.status, err)
		}
	}
}

func TestTransportFailureIsServiceUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New(url, "", nil).Leaderboard(context.Background())
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestLeaderboardStatsAndAttempts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/quiz/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"leaderboard": []domain.LeaderboardEntry{{Email: "a@example.com", Score: 150}}})
	})
	mux.HandleFunc("/api/quiz/stats", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.Stats{Count: 3, AverageScore: 100, HighestScore: 120})
	})
	mux.HandleFunc("/api/quiz/attempts", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"attempts": []domain.Attempt{{ID: 2}, {ID: 1}}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL, "tok", server.Client())
	ctx := context.Background()

	entries, err := c.Leaderboard(ctx)
	if err != nil || len(entries) != 1 || entries[0].Score != 150 {
		t.Fatalf("leaderboard = (%+v, %v)", entries, err)
	}
	stats, err := c.Stats(ctx)
	if err != nil || stats.HighestScore != 120 {
		t.Fatalf("stats = (%+v, %v)", stats, err)
	}
	attempts, err := c.Attempts(ctx)
	if err != nil || len(attempts) != 2 || attempts[0].ID != 2 {
		t.Fatalf("attempts = (%+v, %v)", attempts, err)
	}
}
