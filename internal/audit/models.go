package audit

import "time"

// Event is emitted from domain logic to capture key actions for the case
// timeline. Keep it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp  time.Time
	Action     string
	Actor      string
	CaseID     string
	EvidenceID string
	Subject    string
	Detail     string
	RequestID  string
}

// Timeline actions.
const (
	EventCaseOpened              = "case_opened"
	EventEvidenceCreated         = "evidence_created"
	EventEvidenceStatusChanged   = "evidence_status_changed"
	EventEvidenceDamagedFlagged  = "evidence_damaged_flagged"
	EventEvidenceDeleted         = "evidence_deleted"
	EventCustodyTransferAppended = "custody_transfer_appended"
	EventAccessRequestSubmitted  = "access_request_submitted"
	EventAccessRequestApproved   = "access_request_approved"
	EventAccessRequestDenied     = "access_request_denied"
	EventLoginSucceeded          = "login_succeeded"
	EventLoginFailed             = "login_failed"
)
