package memory

import (
	"context"
	"sync"

	"custodia/internal/audit"
)

// Store keeps timeline events in memory for unit tests and dev mode.
type Store struct {
	mu     sync.RWMutex
	events []audit.Event
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything appended so far.
func (s *Store) Events() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events...)
}
