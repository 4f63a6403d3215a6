package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trivia-quiz-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// StateStore keeps the resumable session snapshot of one device under
// quiz:state:{deviceID}. The TTL is refreshed on every save so abandoned
// snapshots eventually disappear.
type StateStore struct {
	client   *redis.Client
	deviceID string
	ttl      time.Duration
}

func NewStateStore(client *redis.Client, deviceID string, ttl time.Duration) *StateStore {
	return &StateStore{client: client, deviceID: deviceID, ttl: ttl}
}

func (s *StateStore) Load(ctx context.Context) (domain.SessionState, bool, error) {
	raw, err := s.client.Get(ctx, s.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionState{}, false, nil
	}
	if err != nil {
		return domain.SessionState{}, false, fmt.Errorf("load session state: %w", err)
	}
	var state domain.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.SessionState{}, false, fmt.Errorf("decode session state: %w", err)
	}
	return state, true, nil
}

func (s *StateStore) Save(ctx context.Context, state domain.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	if err := s.client.Set(ctx, s.key(), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	return nil
}

func (s *StateStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key()).Err(); err != nil {
		return fmt.Errorf("clear session state: %w", err)
	}
	return nil
}

func (s *StateStore) key() string {
	return "quiz:state:" + s.deviceID
}
