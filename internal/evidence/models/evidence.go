package models

import (
	"strings"
	"time"

	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// Status is the lifecycle state of an evidence item.
type Status string

const (
	StatusCollected  Status = "collected"
	StatusInAnalysis Status = "in_analysis"
	StatusInStorage  Status = "in_storage"
	StatusReleased   Status = "released"
	StatusDestroyed  Status = "destroyed"
)

// transitions is the explicit state table. An absent pair is an illegal
// transition, not a missed branch.
var transitions = map[Status]map[Status]bool{
	StatusCollected: {
		StatusInAnalysis: true,
	},
	StatusInAnalysis: {
		StatusInStorage: true,
		StatusReleased:  true,
		StatusDestroyed: true,
	},
	StatusInStorage: {
		StatusInAnalysis: true,
		StatusReleased:   true,
		StatusDestroyed:  true,
	},
}

// ParseStatus validates a caller-supplied status string.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusCollected, StatusInAnalysis, StatusInStorage, StatusReleased, StatusDestroyed:
		return s, nil
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "unknown evidence status %q", raw)
}

// IsTerminal reports whether the chain of custody is sealed in this status.
func (s Status) IsTerminal() bool {
	return s == StatusReleased || s == StatusDestroyed
}

// EvidenceItem is the authoritative registry record for one piece of
// evidence. CurrentDepartment is a projection of the custody ledger tail and
// is only ever written by the ledger append, in the same transaction.
type EvidenceItem struct {
	ID                domain.EvidenceID `json:"id"`
	EvidenceNumber    string            `json:"evidence_number"`
	LabNumber         string            `json:"lab_number,omitempty"`
	CaseID            domain.CaseID     `json:"case_id"`
	DeviceType        string            `json:"device_type"`
	Brand             string            `json:"brand,omitempty"`
	Model             string            `json:"model,omitempty"`
	SerialNumber      string            `json:"serial_number,omitempty"`
	Description       string            `json:"description,omitempty"`
	Status            Status            `json:"status"`
	Damaged           bool              `json:"damaged"`
	OriginDepartment  string            `json:"origin_department"`
	CurrentDepartment string            `json:"current_department"`
	TransferCount     int               `json:"transfer_count"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// NewEvidenceItem builds an intake record. The ledger starts empty so the
// current custodian is the collecting department.
func NewEvidenceItem(id domain.EvidenceID, caseID domain.CaseID, attrs Attributes, originDepartment string, now time.Time) (*EvidenceItem, error) {
	if err := attrs.validate(); err != nil {
		return nil, err
	}
	originDepartment = strings.TrimSpace(originDepartment)
	if originDepartment == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "origin department is required")
	}
	return &EvidenceItem{
		ID:                id,
		EvidenceNumber:    attrs.EvidenceNumber,
		LabNumber:         attrs.LabNumber,
		CaseID:            caseID,
		DeviceType:        attrs.DeviceType,
		Brand:             attrs.Brand,
		Model:             attrs.Model,
		SerialNumber:      attrs.SerialNumber,
		Description:       attrs.Description,
		Status:            StatusCollected,
		OriginDepartment:  originDepartment,
		CurrentDepartment: originDepartment,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Attributes carries the caller-supplied intake fields.
type Attributes struct {
	EvidenceNumber string `json:"evidence_number"`
	LabNumber      string `json:"lab_number"`
	DeviceType     string `json:"device_type"`
	Brand          string `json:"brand"`
	Model          string `json:"model"`
	SerialNumber   string `json:"serial_number"`
	Description    string `json:"description"`
}

func (a Attributes) validate() error {
	if strings.TrimSpace(a.EvidenceNumber) == "" {
		return dErrors.New(dErrors.CodeValidation, "evidence number is required")
	}
	if strings.TrimSpace(a.DeviceType) == "" {
		return dErrors.New(dErrors.CodeValidation, "device type is required")
	}
	return nil
}

// CanTransitionTo checks the state table only. The service layers on the
// transfer-history precondition for leaving collected.
func (e *EvidenceItem) CanTransitionTo(next Status) error {
	if e.Status.IsTerminal() {
		return dErrors.Newf(dErrors.CodeTerminalState, "evidence %s is %s, custody chain is sealed", e.EvidenceNumber, e.Status)
	}
	if !transitions[e.Status][next] {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot move evidence from %s to %s", e.Status, next)
	}
	return nil
}
