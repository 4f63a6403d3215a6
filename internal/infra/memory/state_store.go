package memory

import (
	"context"
	"sync"

	"trivia-quiz-service/internal/domain"
)

// StateStore keeps a single session snapshot in memory.
type StateStore struct {
	mu    sync.RWMutex
	state *domain.SessionState
	saves int
}

func NewStateStore() *StateStore {
	return &StateStore{}
}

func (s *StateStore) Load(_ context.Context) (domain.SessionState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return domain.SessionState{}, false, nil
	}
	return s.state.Clone(), true, nil
}

func (s *StateStore) Save(_ context.Context, state domain.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := state.Clone()
	s.state = &snapshot
	s.saves++
	return nil
}

func (s *StateStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = nil
	return nil
}

// Saves counts snapshots written so far.
func (s *StateStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
