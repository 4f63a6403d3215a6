package domain

import (
	"fmt"
	"time"
)

// Question is a multiple-choice question as presented to a quiz taker.
// PresentedOrder is shuffled once at fetch time and never re-shuffled.
type Question struct {
	Category       string   `json:"category"`
	Difficulty     string   `json:"difficulty"`
	Prompt         string   `json:"question"`
	CorrectAnswer  string   `json:"correct_answer"`
	Distractors    []string `json:"incorrect_answers"`
	PresentedOrder []string `json:"allAnswers"`
}

// Offers reports whether answer is one of the presented options.
func (q Question) Offers(answer string) bool {
	for _, option := range q.PresentedOrder {
		if option == answer {
			return true
		}
	}
	return false
}

// BatchRequest selects which questions a source should return.
type BatchRequest struct {
	Amount     int
	Category   int // 0 means any category
	Difficulty string
	Type       string
}

// SessionState is the resumable snapshot of an in-progress quiz.
type SessionState struct {
	Questions        []Question `json:"questions"`
	CurrentIndex     int        `json:"currentQuestion"`
	Score            int        `json:"score"`
	CorrectCount     int        `json:"correctAnswers"`
	WrongCount       int        `json:"wrongAnswers"`
	RemainingSeconds int        `json:"timeLeft"`
	SelectedAnswer   *string    `json:"selectedAnswer,omitempty"`
	StartedAt        time.Time  `json:"startTime"`
}

// SkippedCount is derived: every resolved index is either answered or skipped.
func (s SessionState) SkippedCount() int {
	return s.CurrentIndex - s.CorrectCount - s.WrongCount
}

// Validate checks a restored snapshot against the session invariants.
// durationSeconds bounds RemainingSeconds.
func (s SessionState) Validate(durationSeconds int) error {
	switch {
	case len(s.Questions) == 0:
		return fmt.Errorf("%w: no questions", ErrInvalidState)
	case s.CurrentIndex < 0 || s.CurrentIndex > len(s.Questions):
		return fmt.Errorf("%w: currentQuestion %d outside 0..%d", ErrInvalidState, s.CurrentIndex, len(s.Questions))
	case s.RemainingSeconds < 0 || s.RemainingSeconds > durationSeconds:
		return fmt.Errorf("%w: timeLeft %d outside 0..%d", ErrInvalidState, s.RemainingSeconds, durationSeconds)
	case s.CorrectCount < 0 || s.WrongCount < 0:
		return fmt.Errorf("%w: negative answer counts", ErrInvalidState)
	}

	resolved := s.CurrentIndex
	if s.SelectedAnswer != nil {
		if s.CurrentIndex == len(s.Questions) || !s.Questions[s.CurrentIndex].Offers(*s.SelectedAnswer) {
			return fmt.Errorf("%w: selected answer does not belong to the current question", ErrInvalidState)
		}
		// the pending answer is already counted
		resolved++
	}
	if s.CorrectCount+s.WrongCount > resolved {
		return fmt.Errorf("%w: %d answers recorded for %d resolved questions", ErrInvalidState, s.CorrectCount+s.WrongCount, resolved)
	}
	return nil
}

// Clone returns a deep copy safe to hand out of the machine.
func (s SessionState) Clone() SessionState {
	out := s
	out.Questions = append([]Question(nil), s.Questions...)
	if s.SelectedAnswer != nil {
		selected := *s.SelectedAnswer
		out.SelectedAnswer = &selected
	}
	return out
}

// AttemptSummary is what a finished session reports.
type AttemptSummary struct {
	Score            int `json:"score"`
	CorrectCount     int `json:"correctAnswers"`
	WrongCount       int `json:"wrongAnswers"`
	TimeSpentSeconds int `json:"timeSpent"`
}

// Attempt is the durable record of one completed session.
type Attempt struct {
	ID               int64     `json:"id"`
	OwnerID          string    `json:"userId"`
	Score            int       `json:"score"`
	CorrectCount     int       `json:"correctAnswers"`
	WrongCount       int       `json:"wrongAnswers"`
	TimeSpentSeconds int       `json:"timeSpent"`
	CompletedAt      time.Time `json:"completedAt"`
}

// Summary strips storage fields from an attempt.
func (a Attempt) Summary() AttemptSummary {
	return AttemptSummary{
		Score:            a.Score,
		CorrectCount:     a.CorrectCount,
		WrongCount:       a.WrongCount,
		TimeSpentSeconds: a.TimeSpentSeconds,
	}
}

// Identity is the verified caller as asserted by the identity provider.
type Identity struct {
	Email string
	Name  string
}

// Owner is a registered quiz taker.
type Owner struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"name,omitempty"`
}

// OwnerAttempts groups every stored attempt of one owner.
type OwnerAttempts struct {
	Owner    Owner
	Attempts []Attempt
}

// LeaderboardEntry is the best attempt of one owner.
type LeaderboardEntry struct {
	Name             *string   `json:"name"`
	Email            string    `json:"email"`
	Score            int       `json:"score"`
	CorrectCount     int       `json:"correctAnswers"`
	WrongCount       int       `json:"wrongAnswers"`
	TimeSpentSeconds int       `json:"timeSpent"`
	CompletedAt      time.Time `json:"completedAt"`
}

// Leaderboard captures the ordered global ranking.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"leaderboard"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Stats summarizes one owner's attempts.
type Stats struct {
	Count        int `json:"count"`
	AverageScore int `json:"averageScore"`
	HighestScore int `json:"highestScore"`
}
