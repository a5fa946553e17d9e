package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrSessionNotFound is returned for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

type entry struct {
	turn chan struct{} // capacity 1, held for the duration of one turn
	sess *Session
}

// Store is an in-memory session table. Each session runs one turn at a time;
// distinct sessions proceed concurrently.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	welcome  string
}

// NewStore creates an empty store seeding sessions with welcome.
func NewStore(welcome string) *Store {
	return &Store{sessions: make(map[string]*entry), welcome: welcome}
}

// Create registers a new session.
func (s *Store) Create(userID string) *Session {
	sess := New(userID, s.welcome)
	s.mu.Lock()
	s.sessions[sess.ID] = &entry{turn: make(chan struct{}, 1), sess: sess}
	s.mu.Unlock()
	return sess
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e, nil
}

// With runs fn while holding the session's turn lock. It waits for a turn
// already in flight, or returns ctx.Err() if ctx ends first.
func (s *Store) With(ctx context.Context, id string, fn func(*Session) error) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	select {
	case e.turn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.turn }()
	return fn(e.sess)
}

// Delete removes a session.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
