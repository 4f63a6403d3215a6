package app

import "trivia-quiz-service/internal/domain"

// AggregateStats computes count, rounded average score and highest score.
// Zero attempts yield all zeros.
func AggregateStats(attempts []domain.Attempt) domain.Stats {
	if len(attempts) == 0 {
		return domain.Stats{}
	}

	total := 0
	highest := attempts[0].Score
	for _, attempt := range attempts {
		total += attempt.Score
		if attempt.Score > highest {
			highest = attempt.Score
		}
	}
	return domain.Stats{
		Count:        len(attempts),
		AverageScore: roundHalfUp(total, len(attempts)),
		HighestScore: highest,
	}
}

// roundHalfUp divides rounding .5 toward positive infinity, for negative sums too.
func roundHalfUp(sum, n int) int {
	// floor((2*sum + n) / (2*n)) with floor division
	num := 2*sum + n
	den := 2 * n
	q := num / den
	if num%den != 0 && num < 0 {
		q--
	}
	return q
}
