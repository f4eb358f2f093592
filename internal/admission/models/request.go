package models

import (
	"strings"
	"time"

	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// Request statuses. pending is the only mutable state; approved and denied
// are terminal.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDenied   = "denied"
)

// AccessRequest is a pre-account application for system access, submitted by
// an unauthenticated requester and reviewed out of band.
type AccessRequest struct {
	ID                domain.RequestID `json:"id"`
	FullName          string           `json:"full_name"`
	BadgeNumber       string           `json:"badge_number"`
	Department        string           `json:"department"`
	PhoneExtension    string           `json:"phone_extension,omitempty"`
	RequestedUsername string           `json:"requested_username"`
	Reason            string           `json:"reason,omitempty"`
	Status            string           `json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
	ReviewedBy        string           `json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time       `json:"reviewed_at,omitempty"`
	ReviewNotes       string           `json:"review_notes,omitempty"`
}

// Submission carries the raw intake form.
type Submission struct {
	FullName          string `json:"full_name"`
	BadgeNumber       string `json:"badge_number"`
	Department        string `json:"department"`
	PhoneExtension    string `json:"phone_extension"`
	RequestedUsername string `json:"requested_username"`
	Reason            string `json:"reason"`
}

// NewAccessRequest validates the intake form and produces a pending request.
func NewAccessRequest(id domain.RequestID, sub Submission, now time.Time) (*AccessRequest, error) {
	sub.FullName = strings.TrimSpace(sub.FullName)
	sub.BadgeNumber = strings.TrimSpace(sub.BadgeNumber)
	sub.RequestedUsername = strings.ToLower(strings.TrimSpace(sub.RequestedUsername))
	if sub.FullName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "full name is required")
	}
	if sub.BadgeNumber == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "badge number is required")
	}
	if sub.RequestedUsername == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "requested username is required")
	}
	return &AccessRequest{
		ID:                id,
		FullName:          sub.FullName,
		BadgeNumber:       sub.BadgeNumber,
		Department:        strings.TrimSpace(sub.Department),
		PhoneExtension:    strings.TrimSpace(sub.PhoneExtension),
		RequestedUsername: sub.RequestedUsername,
		Reason:            strings.TrimSpace(sub.Reason),
		Status:            StatusPending,
		CreatedAt:         now,
	}, nil
}

// IsTerminal reports whether review has already happened.
func (r *AccessRequest) IsTerminal() bool {
	return r.Status == StatusApproved || r.Status == StatusDenied
}

// CanReview rejects re-review of a terminal request.
func (r *AccessRequest) CanReview() error {
	if r.IsTerminal() {
		return dErrors.Newf(dErrors.CodeAlreadyReviewed, "request was already %s by %s", r.Status, r.ReviewedBy)
	}
	return nil
}

// ApplyReview records the terminal transition in memory. Persisting it is the
// store's job.
func (r *AccessRequest) ApplyReview(status, reviewer, notes string, at time.Time) {
	r.Status = status
	r.ReviewedBy = reviewer
	r.ReviewedAt = &at
	r.ReviewNotes = notes
}
