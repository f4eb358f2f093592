package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"custodia/internal/admission/models"
	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

// InMemory keeps access requests in mutex-guarded maps. The single lock gives
// the same duplicate-check-plus-insert atomicity the postgres partial unique
// indexes provide.
type InMemory struct {
	mu   sync.RWMutex
	byID map[domain.RequestID]*models.AccessRequest
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[domain.RequestID]*models.AccessRequest)}
}

func (s *InMemory) CreatePending(_ context.Context, req *models.AccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Status != models.StatusPending {
			continue
		}
		if existing.BadgeNumber == req.BadgeNumber {
			return fmt.Errorf("pending request for badge %s: %w", req.BadgeNumber, sentinel.ErrAlreadyUsed)
		}
		if existing.RequestedUsername == req.RequestedUsername {
			return fmt.Errorf("pending request for username %s: %w", req.RequestedUsername, sentinel.ErrAlreadyUsed)
		}
	}
	clone := *req
	s.byID[req.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.RequestID) (*models.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *req
	return &clone, nil
}

func (s *InMemory) List(_ context.Context, status string) ([]models.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AccessRequest
	for _, req := range s.byID {
		if status != "" && req.Status != status {
			continue
		}
		out = append(out, *req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// MarkReviewed transitions pending to a terminal status. A request that is
// already terminal yields ErrVersionConflict.
func (s *InMemory) MarkReviewed(_ context.Context, id domain.RequestID, status, reviewer, notes string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if req.Status != models.StatusPending {
		return fmt.Errorf("request is %s: %w", req.Status, sentinel.ErrVersionConflict)
	}
	req.ApplyReview(status, reviewer, notes, at)
	return nil
}
