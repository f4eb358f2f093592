// Package policy is the permission gate: a pure predicate consulted before
// every mutating operation and before confidential document access. It is
// stateless and side-effect free; it never logs, notifies, or mutates.
//
// Absence of an explicit allow rule is a denial.
package policy

import "custodia/pkg/domain"

// Action is the kind of operation being gated.
type Action string

const (
	ActionRead            Action = "read"
	ActionWrite           Action = "write"
	ActionTransfer        Action = "transfer"
	ActionDelete          Action = "delete"
	ActionReviewAdmission Action = "review_admission"
)

// ResourceKind names what the action targets.
type ResourceKind string

const (
	KindCase          ResourceKind = "case"
	KindEvidence      ResourceKind = "evidence"
	KindDocument      ResourceKind = "document"
	KindAccessRequest ResourceKind = "access_request"
)

// Document access levels, ordered from least to most restricted.
const (
	AccessPublic     = "public"
	AccessInternal   = "internal"
	AccessRestricted = "restricted"
	AccessClassified = "classified"
)

// Resource carries the access-control attributes a decision keys on. Only
// attributes, never the full record: the gate must not be tempted to inspect
// state it has no business reading.
type Resource struct {
	Kind         ResourceKind
	Department   string
	AccessLevel  string
	Confidential bool
}

type ruleKey struct {
	kind   ResourceKind
	action Action
}

type roleSet map[domain.Role]bool

func roles(rs ...domain.Role) roleSet {
	set := make(roleSet, len(rs))
	for _, r := range rs {
		set[r] = true
	}
	return set
}

var everyone = roles(domain.RoleAdmin, domain.RoleInvestigator, domain.RoleAnalyst, domain.RoleUser)

// rules is the explicit allow table. A (kind, action) pair missing from this
// table is denied for every role.
var rules = map[ruleKey]roleSet{
	{KindCase, ActionRead}:      everyone,
	{KindCase, ActionWrite}:     roles(domain.RoleAdmin, domain.RoleInvestigator),
	{KindEvidence, ActionRead}:  everyone,
	{KindEvidence, ActionWrite}: roles(domain.RoleAdmin, domain.RoleInvestigator, domain.RoleAnalyst),
	{KindEvidence, ActionTransfer}: roles(
		domain.RoleAdmin, domain.RoleInvestigator, domain.RoleAnalyst),
	{KindEvidence, ActionDelete}:           roles(domain.RoleAdmin, domain.RoleInvestigator),
	{KindDocument, ActionRead}:             everyone, // further narrowed by access level below
	{KindDocument, ActionWrite}:            roles(domain.RoleAdmin, domain.RoleInvestigator),
	{KindAccessRequest, ActionRead}:        roles(domain.RoleAdmin),
	{KindAccessRequest, ActionReviewAdmission}: roles(domain.RoleAdmin),
}

// documentReadFloor maps an access level to the roles that may read it.
var documentReadFloor = map[string]roleSet{
	AccessPublic:     everyone,
	AccessInternal:   everyone,
	AccessRestricted: roles(domain.RoleAdmin, domain.RoleInvestigator),
	AccessClassified: roles(domain.RoleAdmin),
}

// Allowed reports whether the actor may perform action on the resource.
func Allowed(actor domain.Actor, action Action, res Resource) bool {
	if !actor.Active {
		return false
	}
	allowed, ok := rules[ruleKey{res.Kind, action}]
	if !ok || !allowed[actor.Role] {
		return false
	}
	if res.Kind == KindDocument && action == ActionRead {
		return documentReadAllowed(actor, res)
	}
	return true
}

func documentReadAllowed(actor domain.Actor, res Resource) bool {
	level := res.AccessLevel
	if level == "" {
		level = AccessInternal
	}
	// The confidential flag raises the effective floor to restricted even if
	// the stored level says otherwise.
	if res.Confidential && (level == AccessPublic || level == AccessInternal) {
		level = AccessRestricted
	}
	floor, ok := documentReadFloor[level]
	if !ok {
		return false
	}
	return floor[actor.Role]
}
