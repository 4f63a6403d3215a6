package app

import (
	"sort"

	"trivia-quiz-service/internal/domain"
)

// LeaderboardSize caps the ranking.
const LeaderboardSize = 10

// RankLeaderboard picks the best attempt of every owner and orders owners by it.
// Higher score wins; equal scores go to the lower time spent. Owners without
// attempts are left out. A limit <= 0 falls back to LeaderboardSize.
func RankLeaderboard(owners []domain.OwnerAttempts, limit int) []domain.LeaderboardEntry {
	if limit <= 0 {
		limit = LeaderboardSize
	}

	entries := make([]domain.LeaderboardEntry, 0, len(owners))
	for _, owner := range owners {
		best, ok := bestAttempt(owner.Attempts)
		if !ok {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			Name:             displayName(owner.Owner),
			Email:            owner.Owner.Email,
			Score:            best.Score,
			CorrectCount:     best.CorrectCount,
			WrongCount:       best.WrongCount,
			TimeSpentSeconds: best.TimeSpentSeconds,
			CompletedAt:      best.CompletedAt,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return outranks(entries[i].Score, entries[i].TimeSpentSeconds, entries[j].Score, entries[j].TimeSpentSeconds)
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// bestAttempt keeps the first attempt on an exact tie.
func bestAttempt(attempts []domain.Attempt) (domain.Attempt, bool) {
	if len(attempts) == 0 {
		return domain.Attempt{}, false
	}
	best := attempts[0]
	for _, candidate := range attempts[1:] {
		if outranks(candidate.Score, candidate.TimeSpentSeconds, best.Score, best.TimeSpentSeconds) {
			best = candidate
		}
	}
	return best, true
}

func outranks(score, timeSpent, otherScore, otherTimeSpent int) bool {
	if score != otherScore {
		return score > otherScore
	}
	return timeSpent < otherTimeSpent
}

func displayName(owner domain.Owner) *string {
	if owner.DisplayName == "" {
		return nil
	}
	name := owner.DisplayName
	return &name
}
