package store

import (
	"context"

	"custodia/internal/evidence/models"
	"custodia/pkg/domain"
)

// Store is the evidence persistence surface. Implementations are pure I/O;
// state-machine and chain-continuity rules live in the service.
//
// AppendTransfer must atomically insert the ledger entry and advance the
// item's current_department and transfer_count, conditioned on transfer_count
// still equalling expectedCount and the status not being terminal. A stale
// expectedCount yields sentinel.ErrVersionConflict, a sealed chain yields
// sentinel.ErrInvalidState, and neither writes anything.
//
// UpdateStatus is conditioned on both the expected status and expectedCount,
// so a transfer landing after the caller's read invalidates the transition.
type Store interface {
	Create(ctx context.Context, item *models.EvidenceItem) error
	FindByID(ctx context.Context, id domain.EvidenceID) (*models.EvidenceItem, error)
	UpdateStatus(ctx context.Context, id domain.EvidenceID, from, to models.Status, expectedCount int) error
	SetDamaged(ctx context.Context, id domain.EvidenceID, damaged bool) error
	Delete(ctx context.Context, id domain.EvidenceID) error
	AppendTransfer(ctx context.Context, transfer *models.CustodyTransfer, expectedCount int) error
	ListTransfers(ctx context.Context, id domain.EvidenceID) ([]models.CustodyTransfer, error)
}
