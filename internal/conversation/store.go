// ABOUTME: In-memory conversation store keyed by normalized user id
// ABOUTME: Lazy creation, soft/hard clear, and idle sweeping

package conversation

import (
	"sync"
	"time"
)

// Store holds every user's State.
type Store struct {
	mu     sync.Mutex
	states map[string]*State
	now    func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		states: make(map[string]*State),
		now:    time.Now,
	}
}

// Get returns the user's state, creating it on first use, and records activity.
func (s *Store) Get(userID string) *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[userID]
	if !ok {
		st = &State{}
		s.states[userID] = st
	}
	st.LastActivity = s.now()
	return st
}

// Peek returns the user's state without creating it.
func (s *Store) Peek(userID string) (*State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID]
	return st, ok
}

// SoftClear resets the user's flow while keeping consent and welcome-card flags.
func (s *Store) SoftClear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[userID]; ok {
		st.Reset()
	}
}

// HardClear forgets the user entirely.
func (s *Store) HardClear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
}

// Len returns the number of tracked users.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// Sweep drops users idle for longer than idle and returns how many were removed.
// A non-positive idle disables sweeping.
func (s *Store) Sweep(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	removed := 0
	for id, st := range s.states {
		if st.LastActivity.Before(cutoff) {
			delete(s.states, id)
			removed++
		}
	}
	return removed
}
