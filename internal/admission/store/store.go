package store

import (
	"context"
	"time"

	"custodia/internal/admission/models"
	"custodia/pkg/domain"
)

// Store is the access-request persistence surface.
//
// CreatePending must enforce "at most one pending request per badge number"
// and "at most one pending request per requested username" atomically with
// the insert, returning sentinel.ErrAlreadyUsed when either holds. MarkReviewed
// must be a conditional write on status = pending so double review affects
// zero rows; it honors a transaction in context so approval can span the
// request update and the account insert.
type Store interface {
	CreatePending(ctx context.Context, req *models.AccessRequest) error
	FindByID(ctx context.Context, id domain.RequestID) (*models.AccessRequest, error)
	List(ctx context.Context, status string) ([]models.AccessRequest, error)
	MarkReviewed(ctx context.Context, id domain.RequestID, status, reviewer, notes string, at time.Time) error
}
