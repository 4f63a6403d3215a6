package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"trivia-quiz-service/internal/domain"
)

// StateStore persists the session snapshot as a JSON document on local disk.
type StateStore struct {
	path string
}

func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

func (s *StateStore) Load(_ context.Context) (domain.SessionState, bool, error) {
	var state domain.SessionState
	found, err := readJSON(s.path, &state)
	if err != nil {
		return domain.SessionState{}, false, fmt.Errorf("load session state: %w", err)
	}
	return state, found, nil
}

func (s *StateStore) Save(_ context.Context, state domain.SessionState) error {
	if err := writeJSONAtomic(s.path, state); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	return nil
}

func (s *StateStore) Clear(_ context.Context) error {
	return removeIfExists(s.path)
}

// PendingSummaryStore keeps a finished summary that could not be submitted yet.
type PendingSummaryStore struct {
	path string
}

func NewPendingSummaryStore(path string) *PendingSummaryStore {
	return &PendingSummaryStore{path: path}
}

func (s *PendingSummaryStore) Load() (domain.AttemptSummary, bool, error) {
	var summary domain.AttemptSummary
	found, err := readJSON(s.path, &summary)
	if err != nil {
		return domain.AttemptSummary{}, false, fmt.Errorf("load pending summary: %w", err)
	}
	return summary, found, nil
}

func (s *PendingSummaryStore) Save(summary domain.AttemptSummary) error {
	if err := writeJSONAtomic(s.path, summary); err != nil {
		return fmt.Errorf("save pending summary: %w", err)
	}
	return nil
}

func (s *PendingSummaryStore) Clear() error {
	return removeIfExists(s.path)
}

func readJSON(path string, dst interface{}) (bool, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

// writeJSONAtomic goes through a temp file and rename so a crash never leaves
// half a document behind.
func writeJSONAtomic(path string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".quiz-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
