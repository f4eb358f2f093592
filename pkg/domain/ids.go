package domain

import (
	"fmt"

	"github.com/google/uuid"

	dErrors "custodia/pkg/domain-errors"
)

// Typed UUID identifiers. Distinct types keep case, evidence, transfer, and
// account identifiers from being mixed up at compile time.
type (
	CaseID     uuid.UUID
	EvidenceID uuid.UUID
	TransferID uuid.UUID
	RequestID  uuid.UUID
	AccountID  uuid.UUID
)

func (id CaseID) String() string     { return uuid.UUID(id).String() }
func (id EvidenceID) String() string { return uuid.UUID(id).String() }
func (id TransferID) String() string { return uuid.UUID(id).String() }
func (id RequestID) String() string  { return uuid.UUID(id).String() }
func (id AccountID) String() string  { return uuid.UUID(id).String() }

func (id CaseID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id EvidenceID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TransferID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id AccountID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

// parseUUID enforces the shared invariant: IDs must be valid, non-nil UUIDs.
func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s id is required", kind))
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s id is not a valid UUID", kind))
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s id must not be the nil UUID", kind))
	}
	return parsed, nil
}

// ParseCaseID constructs a CaseID from external input.
func ParseCaseID(raw string) (CaseID, error) {
	parsed, err := parseUUID(raw, "case")
	return CaseID(parsed), err
}

// ParseEvidenceID constructs an EvidenceID from external input.
func ParseEvidenceID(raw string) (EvidenceID, error) {
	parsed, err := parseUUID(raw, "evidence")
	return EvidenceID(parsed), err
}

// ParseRequestID constructs a RequestID from external input.
func ParseRequestID(raw string) (RequestID, error) {
	parsed, err := parseUUID(raw, "access request")
	return RequestID(parsed), err
}

// ParseAccountID constructs an AccountID from external input.
func ParseAccountID(raw string) (AccountID, error) {
	parsed, err := parseUUID(raw, "account")
	return AccountID(parsed), err
}
