package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// State is everything the client persists between runs: session tokens,
// the active role, and per-ride cancellation deadlines so a restart does
// not reset the countdown.
type State struct {
	AccessToken     string               `json:"access_token,omitempty"`
	RefreshToken    string               `json:"refresh_token,omitempty"`
	Role            string               `json:"role,omitempty"`
	CancelDeadlines map[string]time.Time `json:"cancel_deadlines,omitempty"`
}

type Store struct {
	path  string
	mu    sync.Mutex
	state State
}

// Open loads the state file at path, creating parent directories as
// needed. A missing file yields an empty state, not an error.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	if err := json.Unmarshal(data, &s.state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}

	return s, nil
}

func (s *Store) Tokens() (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AccessToken, s.state.RefreshToken
}

func (s *Store) SetTokens(access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.AccessToken = access
	s.state.RefreshToken = refresh
	return s.save()
}

func (s *Store) Role() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Role
}

func (s *Store) SetRole(role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Role = role
	return s.save()
}

// CancelDeadline returns the persisted cancellation deadline for a ride.
func (s *Store) CancelDeadline(rideID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.state.CancelDeadlines[rideID]
	return deadline, ok
}

func (s *Store) SetCancelDeadline(rideID string, deadline time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CancelDeadlines == nil {
		s.state.CancelDeadlines = make(map[string]time.Time)
	}
	s.state.CancelDeadlines[rideID] = deadline
	return s.save()
}

func (s *Store) ClearCancelDeadline(rideID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CancelDeadlines == nil {
		return nil
	}
	delete(s.state.CancelDeadlines, rideID)
	return s.save()
}

// Clear wipes all persisted state. Used on logout.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{}
	return s.save()
}

// save writes through a temp file and renames so a crash never leaves a
// half-written state file. Caller must hold s.mu.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	return nil
}
