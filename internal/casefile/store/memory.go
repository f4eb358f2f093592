package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"custodia/internal/casefile/models"
	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

// InMemory keeps cases in a mutex-guarded map for unit tests and dev mode.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[domain.CaseID]*models.Case
	numbers map[string]bool
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[domain.CaseID]*models.Case),
		numbers: make(map[string]bool),
	}
}

func (s *InMemory) Create(_ context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.numbers[c.Number] {
		return fmt.Errorf("case number %s: %w", c.Number, sentinel.ErrAlreadyUsed)
	}
	clone := *c
	s.byID[c.ID] = &clone
	s.numbers[c.Number] = true
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.CaseID) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

// NextSequence returns the next free sequence number for a year prefix, e.g.
// prefix "26" over existing 26-0001..26-0007 yields 8.
func (s *InMemory) NextSequence(_ context.Context, yearPrefix string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := 0
	for number := range s.numbers {
		rest, ok := strings.CutPrefix(number, yearPrefix+"-")
		if !ok {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(rest, "%d", &n); err == nil && n > max {
			max = n
		}
	}
	return max + 1, nil
}
