package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"custodia/internal/evidence/models"
	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

// InMemory keeps the registry and ledger in mutex-guarded maps. Used by unit
// tests and dev mode; mirrors the postgres store's atomicity under one lock.
type InMemory struct {
	mu        sync.RWMutex
	items     map[domain.EvidenceID]*models.EvidenceItem
	numbers   map[string]bool
	transfers map[domain.EvidenceID][]models.CustodyTransfer
}

func NewInMemory() *InMemory {
	return &InMemory{
		items:     make(map[domain.EvidenceID]*models.EvidenceItem),
		numbers:   make(map[string]bool),
		transfers: make(map[domain.EvidenceID][]models.CustodyTransfer),
	}
}

func (s *InMemory) Create(_ context.Context, item *models.EvidenceItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.numbers[item.EvidenceNumber] {
		return fmt.Errorf("evidence number %s: %w", item.EvidenceNumber, sentinel.ErrAlreadyUsed)
	}
	clone := *item
	s.items[item.ID] = &clone
	s.numbers[item.EvidenceNumber] = true
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.EvidenceID) (*models.EvidenceItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *item
	return &clone, nil
}

// UpdateStatus applies a compare-and-set on status and transfer count so
// concurrent transitions cannot stack and a concurrent transfer invalidates
// the caller's pre-read.
func (s *InMemory) UpdateStatus(_ context.Context, id domain.EvidenceID, from, to models.Status, expectedCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if item.Status != from {
		return fmt.Errorf("status is %s, expected %s: %w", item.Status, from, sentinel.ErrVersionConflict)
	}
	if item.TransferCount != expectedCount {
		return fmt.Errorf("transfer count is %d, expected %d: %w", item.TransferCount, expectedCount, sentinel.ErrVersionConflict)
	}
	item.Status = to
	item.UpdatedAt = time.Now()
	return nil
}

func (s *InMemory) SetDamaged(_ context.Context, id domain.EvidenceID, damaged bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	item.Damaged = damaged
	item.UpdatedAt = time.Now()
	return nil
}

// Delete removes an item with an empty ledger. A non-empty history makes the
// record permanent.
func (s *InMemory) Delete(_ context.Context, id domain.EvidenceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if len(s.transfers[id]) > 0 {
		return fmt.Errorf("evidence %s has custody history: %w", item.EvidenceNumber, sentinel.ErrConflict)
	}
	delete(s.items, id)
	delete(s.numbers, item.EvidenceNumber)
	return nil
}

// AppendTransfer appends the entry and advances the projection in one
// critical section, failing on a stale expectedCount.
func (s *InMemory) AppendTransfer(_ context.Context, transfer *models.CustodyTransfer, expectedCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[transfer.EvidenceID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if item.Status.IsTerminal() {
		return fmt.Errorf("evidence is %s: %w", item.Status, sentinel.ErrInvalidState)
	}
	if item.TransferCount != expectedCount {
		return fmt.Errorf("transfer count is %d, expected %d: %w", item.TransferCount, expectedCount, sentinel.ErrVersionConflict)
	}
	s.transfers[transfer.EvidenceID] = append(s.transfers[transfer.EvidenceID], *transfer)
	item.CurrentDepartment = transfer.ToDepartment
	item.TransferCount++
	item.UpdatedAt = transfer.TransferredAt
	return nil
}

func (s *InMemory) ListTransfers(_ context.Context, id domain.EvidenceID) ([]models.CustodyTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.items[id]; !ok {
		return nil, sentinel.ErrNotFound
	}
	entries := s.transfers[id]
	out := make([]models.CustodyTransfer, len(entries))
	copy(out, entries)
	return out, nil
}
