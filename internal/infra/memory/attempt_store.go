package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trivia-quiz-service/internal/domain"
)

// Store is an in-memory implementation of app.AttemptStore and app.OwnerDirectory.
type Store struct {
	clock func() time.Time

	mu       sync.RWMutex
	owners   []domain.Owner
	byEmail  map[string]int
	attempts map[string][]domain.Attempt
	nextID   int64
}

func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock allows deterministic completion timestamps in tests.
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{
		clock:    now,
		byEmail:  make(map[string]int),
		attempts: make(map[string][]domain.Attempt),
	}
}

func (s *Store) FindByEmail(_ context.Context, email string) (domain.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byEmail[email]
	if !ok {
		return domain.Owner{}, domain.ErrOwnerNotFound
	}
	return s.owners[idx], nil
}

func (s *Store) Upsert(_ context.Context, identity domain.Identity) (domain.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.byEmail[identity.Email]; ok {
		if identity.Name != "" {
			s.owners[idx].DisplayName = identity.Name
		}
		return s.owners[idx], nil
	}
	owner := domain.Owner{
		ID:          fmt.Sprintf("user-%d", len(s.owners)+1),
		Email:       identity.Email,
		DisplayName: identity.Name,
	}
	s.byEmail[identity.Email] = len(s.owners)
	s.owners = append(s.owners, owner)
	return owner, nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.owners), nil
}

func (s *Store) InsertAttempt(_ context.Context, ownerID string, summary domain.AttemptSummary) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	attempt := domain.Attempt{
		ID:               s.nextID,
		OwnerID:          ownerID,
		Score:            summary.Score,
		CorrectCount:     summary.CorrectCount,
		WrongCount:       summary.WrongCount,
		TimeSpentSeconds: summary.TimeSpentSeconds,
		CompletedAt:      s.clock(),
	}
	s.attempts[ownerID] = append(s.attempts[ownerID], attempt)
	return attempt, nil
}

func (s *Store) FindAttemptsByOwner(_ context.Context, ownerID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Attempt(nil), s.attempts[ownerID]...), nil
}

// FindAllOwnersWithAttempts lists every owner, including those without attempts.
func (s *Store) FindAllOwnersWithAttempts(_ context.Context) ([]domain.OwnerAttempts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.OwnerAttempts, 0, len(s.owners))
	for _, owner := range s.owners {
		out = append(out, domain.OwnerAttempts{
			Owner:    owner,
			Attempts: append([]domain.Attempt(nil), s.attempts[owner.ID]...),
		})
	}
	return out, nil
}
