package models

import (
	"strings"
	"time"

	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// Case statuses. Cases are conventional records; only the department matters
// to the evidence core (it feeds the permission gate).
const (
	CaseStatusActive   = "active"
	CaseStatusClosed   = "closed"
	CaseStatusArchived = "archived"
)

type Case struct {
	ID         domain.CaseID `json:"id"`
	Number     string        `json:"case_number"`
	Name       string        `json:"case_name"`
	Department string        `json:"department"`
	Status     string        `json:"status"`
	OpenedAt   time.Time     `json:"opened_at"`
	CreatedAt  time.Time     `json:"created_at"`
}

func NewCase(id domain.CaseID, number, name, department string, now time.Time) (*Case, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "case name is required")
	}
	if strings.TrimSpace(department) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "case department is required")
	}
	return &Case{
		ID:         id,
		Number:     number,
		Name:       name,
		Department: department,
		Status:     CaseStatusActive,
		OpenedAt:   now,
		CreatedAt:  now,
	}, nil
}
