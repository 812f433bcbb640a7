// Package session issues the opaque identifier used as the reservation
// owner key. The id is persisted to a local file so that every call in
// one checkout flow sees the same owner, and is deleted on checkout
// completion or sign-out so a stale id cannot claim locks afterwards.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

var ErrNoSession = errors.New("el-camino: no active session")

type Session struct {
	ID       string    `json:"id"`
	IssuedAt time.Time `json:"issued_at"`
}

// Load reads the persisted session.
// Returns ErrNoSession when none exists.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	if s.ID == "" {
		return nil, fmt.Errorf("session file %s holds no id", path)
	}

	return &s, nil
}

func Save(path string, s *Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	return nil
}

// Current returns the persisted session, issuing and saving a fresh
// one when none exists.
func Current(path string) (*Session, error) {
	s, err := Load(path)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrNoSession) {
		return nil, err
	}

	s = &Session{
		ID:       "sess_" + uuid.NewString(),
		IssuedAt: time.Now(),
	}
	if err := Save(path, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Invalidate deletes the persisted session. A missing file is fine.
func Invalidate(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}
