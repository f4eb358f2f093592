package store

import (
	"context"
	"fmt"
	"sync"

	"custodia/internal/identity/models"
	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

// InMemory keeps accounts in mutex-guarded maps.
type InMemory struct {
	mu         sync.RWMutex
	byID       map[domain.AccountID]*models.Account
	byUsername map[string]domain.AccountID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:       make(map[domain.AccountID]*models.Account),
		byUsername: make(map[string]domain.AccountID),
	}
}

func (s *InMemory) Create(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byUsername[account.Username]; taken {
		return fmt.Errorf("username %s: %w", account.Username, sentinel.ErrAlreadyUsed)
	}
	clone := *account
	s.byID[account.ID] = &clone
	s.byUsername[account.Username] = account.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.AccountID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *account
	return &clone, nil
}

func (s *InMemory) FindByUsername(_ context.Context, username string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[username]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.byID[id]
	return &clone, nil
}

func (s *InMemory) UsernameExists(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byUsername[username]
	return ok, nil
}
