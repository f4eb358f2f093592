package domain

import dErrors "custodia/pkg/domain-errors"

// Role identifies what class of user an actor is. The permission gate keys
// its rule table on roles, never on individual user identity.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleInvestigator Role = "investigator"
	RoleAnalyst      Role = "analyst"
	RoleUser         Role = "user"
)

var validRoles = map[Role]bool{
	RoleAdmin:        true,
	RoleInvestigator: true,
	RoleAnalyst:      true,
	RoleUser:         true,
}

// ParseRole constructs a Role from external input. Construct via ParseRole at
// trust boundaries to enforce the allowlist; direct casting bypasses validation.
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if !validRoles[role] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role: "+raw)
	}
	return role, nil
}

// Actor is the authenticated caller as seen by the permission gate and the
// audit trail: identity plus the role/department attributes decisions key on.
type Actor struct {
	AccountID  AccountID
	Username   string
	Role       Role
	Department string
	Active     bool
}
