package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"trivia-quiz-service/internal/auth"
	"trivia-quiz-service/internal/domain"
)

// AttemptAPI is the application surface the HTTP handlers need.
type AttemptAPI interface {
	Record(ctx context.Context, identity domain.Identity, summary domain.AttemptSummary) (domain.Attempt, error)
	ListAttempts(ctx context.Context, identity domain.Identity) ([]domain.Attempt, error)
	Stats(ctx context.Context, identity domain.Identity) (domain.Stats, error)
	Leaderboard(ctx context.Context) (domain.Leaderboard, error)
	CountOwners(ctx context.Context) (int, error)
}

type Handlers struct {
	service AttemptAPI
}

func NewHandlers(service AttemptAPI) *Handlers {
	return &Handlers{service: service}
}

// attemptRequest keeps the raw fields so that anything other than a JSON
// integer (strings, fractions, null, missing) is rejected.
type attemptRequest struct {
	Score          json.RawMessage `json:"score"`
	CorrectAnswers json.RawMessage `json:"correctAnswers"`
	WrongAnswers   json.RawMessage `json:"wrongAnswers"`
	TimeSpent      json.RawMessage `json:"timeSpent"`
}

func (r attemptRequest) summary() (domain.AttemptSummary, error) {
	var out domain.AttemptSummary
	fields := []struct {
		name string
		raw  json.RawMessage
		dst  *int
	}{
		{"score", r.Score, &out.Score},
		{"correctAnswers", r.CorrectAnswers, &out.CorrectCount},
		{"wrongAnswers", r.WrongAnswers, &out.WrongCount},
		{"timeSpent", r.TimeSpent, &out.TimeSpentSeconds},
	}
	for _, f := range fields {
		v, err := strconv.Atoi(string(f.raw))
		if err != nil {
			return domain.AttemptSummary{}, fmt.Errorf("%w: %s must be an integer", domain.ErrValidation, f.name)
		}
		*f.dst = v
	}
	return out, nil
}

type attemptCreatedResponse struct {
	Message string         `json:"message"`
	Attempt domain.Attempt `json:"attempt"`
}

type attemptsResponse struct {
	Attempts []domain.Attempt `json:"attempts"`
}

type leaderboardResponse struct {
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

type userCountResponse struct {
	TotalUsers int `json:"totalUsers"`
}

// RecordAttempt handles POST /api/quiz/attempt.
func (h *Handlers) RecordAttempt(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeServiceError(w, domain.ErrUnauthenticated)
		return
	}

	var req attemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeServiceError(w, fmt.Errorf("%w: %v", domain.ErrValidation, err))
		return
	}
	summary, err := req.summary()
	if err != nil {
		writeServiceError(w, err)
		return
	}

	attempt, err := h.service.Record(r.Context(), identity, summary)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attemptCreatedResponse{
		Message: "Quiz attempt saved successfully",
		Attempt: attempt,
	})
}

// ListAttempts handles GET /api/quiz/attempts.
func (h *Handlers) ListAttempts(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeServiceError(w, domain.ErrUnauthenticated)
		return
	}
	attempts, err := h.service.ListAttempts(r.Context(), identity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if attempts == nil {
		attempts = []domain.Attempt{}
	}
	writeJSON(w, http.StatusOK, attemptsResponse{Attempts: attempts})
}

// Stats handles GET /api/quiz/stats.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeServiceError(w, domain.ErrUnauthenticated)
		return
	}
	stats, err := h.service.Stats(r.Context(), identity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Leaderboard handles GET /api/quiz/leaderboard.
func (h *Handlers) Leaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.service.Leaderboard(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	entries := lb.Entries
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{Leaderboard: entries})
}

// CountUsers handles GET /api/users/count.
func (h *Handlers) CountUsers(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.CountOwners(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userCountResponse{TotalUsers: count})
}
