package memory

import (
	"context"
	"fmt"

	"trivia-quiz-service/internal/domain"
)

// StaticQuestionSource serves a fixed question set (useful for tests/offline play).
type StaticQuestionSource struct {
	questions []domain.Question
	calls     int
}

func NewStaticQuestionSource(questions []domain.Question) *StaticQuestionSource {
	return &StaticQuestionSource{questions: questions}
}

// FetchQuestionBatch returns up to req.Amount questions in their stored order.
func (s *StaticQuestionSource) FetchQuestionBatch(_ context.Context, req domain.BatchRequest) ([]domain.Question, error) {
	s.calls++
	if len(s.questions) == 0 {
		return nil, fmt.Errorf("%w: no static questions configured", domain.ErrSourceUnavailable)
	}
	n := len(s.questions)
	if req.Amount > 0 && req.Amount < n {
		n = req.Amount
	}
	return append([]domain.Question(nil), s.questions[:n]...), nil
}

// Calls reports how many batches were requested.
func (s *StaticQuestionSource) Calls() int {
	return s.calls
}

// SampleQuestions is a small offline question set.
func SampleQuestions() []domain.Question {
	return []domain.Question{
		sample("What does CPU stand for?", "Central Processing Unit",
			"Central Process Unit", "Computer Personal Unit", "Central Processor Utility"),
		sample("Which data structure uses FIFO ordering?", "Queue",
			"Stack", "Tree", "Heap"),
		sample("How many bits are in a byte?", "8",
			"4", "16", "32"),
		sample("Which protocol resolves domain names to IP addresses?", "DNS",
			"DHCP", "ARP", "SMTP"),
		sample("What is the time complexity of binary search?", "O(log n)",
			"O(n)", "O(n log n)", "O(1)"),
	}
}

// sample keeps the correct answer in the second slot so play is not trivially predictable.
func sample(prompt, correct string, distractors ...string) domain.Question {
	presented := []string{distractors[0], correct, distractors[1], distractors[2]}
	return domain.Question{
		Category:       "Science: Computers",
		Difficulty:     "easy",
		Prompt:         prompt,
		CorrectAnswer:  correct,
		Distractors:    distractors,
		PresentedOrder: presented,
	}
}
