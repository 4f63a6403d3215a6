package events

import (
	"time"

	"trivia-quiz-service/internal/domain"
)

const (
	DefaultExchange = "quiz.events"

	RoutingAttemptRecorded = "attempt.recorded"
)

// AttemptRecordedEvent is published once per stored attempt.
type AttemptRecordedEvent struct {
	Type             string    `json:"type"`
	AttemptID        int64     `json:"attemptId"`
	UserID           string    `json:"userId"`
	Email            string    `json:"email"`
	Name             string    `json:"name,omitempty"`
	Score            int       `json:"score"`
	CorrectAnswers   int       `json:"correctAnswers"`
	WrongAnswers     int       `json:"wrongAnswers"`
	TimeSpentSeconds int       `json:"timeSpent"`
	CompletedAt      time.Time `json:"completedAt"`
	PublishedAt      time.Time `json:"publishedAt"`
}

func NewAttemptRecordedEvent(owner domain.Owner, attempt domain.Attempt, now time.Time) AttemptRecordedEvent {
	return AttemptRecordedEvent{
		Type:             RoutingAttemptRecorded,
		AttemptID:        attempt.ID,
		UserID:           owner.ID,
		Email:            owner.Email,
		Name:             owner.DisplayName,
		Score:            attempt.Score,
		CorrectAnswers:   attempt.CorrectCount,
		WrongAnswers:     attempt.WrongCount,
		TimeSpentSeconds: attempt.TimeSpentSeconds,
		CompletedAt:      attempt.CompletedAt,
		PublishedAt:      now,
	}
}
