package models

import (
	"strings"
	"time"

	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// CustodyTransfer is one entry of an item's custody ledger. Entries are
// immutable once appended and totally ordered by Seq, never by timestamp.
type CustodyTransfer struct {
	ID             domain.TransferID `json:"id"`
	EvidenceID     domain.EvidenceID `json:"evidence_id"`
	Seq            int               `json:"seq"`
	FromDepartment string            `json:"from_department"`
	ToDepartment   string            `json:"to_department"`
	TransferredBy  string            `json:"transferred_by"`
	Notes          string            `json:"notes,omitempty"`
	TransferredAt  time.Time         `json:"transferred_at"`
}

// NewCustodyTransfer validates the handoff shape. Chain continuity against
// the item's current custodian is the service's job; this only rejects
// malformed entries.
func NewCustodyTransfer(id domain.TransferID, evidenceID domain.EvidenceID, seq int, from, to, transferredBy, notes string, now time.Time) (*CustodyTransfer, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "destination department is required")
	}
	if strings.TrimSpace(transferredBy) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "transferring party is required")
	}
	if to == from {
		return nil, dErrors.Newf(dErrors.CodeValidation, "destination department %s equals the current custodian", to)
	}
	return &CustodyTransfer{
		ID:             id,
		EvidenceID:     evidenceID,
		Seq:            seq,
		FromDepartment: from,
		ToDepartment:   to,
		TransferredBy:  transferredBy,
		Notes:          notes,
		TransferredAt:  now,
	}, nil
}
