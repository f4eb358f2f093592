package models

import (
	"strings"
	"time"

	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// Account is a provisioned login. SecretHash is the only credential material
// ever persisted; the plaintext temporary secret lives exactly as long as the
// approval response that carries it.
type Account struct {
	ID               domain.AccountID `json:"id"`
	Username         string           `json:"username"`
	FullName         string           `json:"full_name,omitempty"`
	BadgeNumber      string           `json:"badge_number,omitempty"`
	Role             domain.Role      `json:"role"`
	Department       string           `json:"department,omitempty"`
	SecretHash       string           `json:"-"`
	MustChangeSecret bool             `json:"must_change_secret"`
	Active           bool             `json:"active"`
	CreatedAt        time.Time        `json:"created_at"`
}

// NewAccount validates the identity fields. The credential hash is attached
// by the issuer afterwards.
func NewAccount(id domain.AccountID, username string, role domain.Role, department string, now time.Time) (*Account, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "username is required")
	}
	if role == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "role is required")
	}
	return &Account{
		ID:         id,
		Username:   username,
		Role:       role,
		Department: strings.TrimSpace(department),
		Active:     true,
		CreatedAt:  now,
	}, nil
}

// Actor projects the account into the shape the permission gate consumes.
func (a *Account) Actor() domain.Actor {
	return domain.Actor{
		AccountID:  a.ID,
		Username:   a.Username,
		Role:       a.Role,
		Department: a.Department,
		Active:     a.Active,
	}
}
