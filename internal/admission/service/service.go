package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"custodia/internal/admission/metrics"
	"custodia/internal/admission/models"
	"custodia/internal/admission/store"
	"custodia/internal/audit"
	identitymodels "custodia/internal/identity/models"
	identityservice "custodia/internal/identity/service"
	"custodia/internal/policy"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/sentinel"
	txcontext "custodia/pkg/platform/tx"
	"custodia/pkg/requestcontext"
)

// Issuer provisions accounts with one-time temporary secrets.
type Issuer interface {
	Provision(ctx context.Context, in identityservice.ProvisionInput) (*identitymodels.Account, string, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
}

// AuditPublisher records timeline events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the access admission controller: intake of pre-account requests
// and their one-shot review lifecycle.
type Service struct {
	requests       store.Store
	issuer         Issuer
	txRunner       txcontext.Runner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(requests store.Store, issuer Issuer, txRunner txcontext.Runner, opts ...Option) *Service {
	s := &Service{requests: requests, issuer: issuer, txRunner: txRunner}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates an intake form and persists a pending request. No account
// or credential is created here.
func (s *Service) Submit(ctx context.Context, sub models.Submission) (*models.AccessRequest, error) {
	req, err := models.NewAccessRequest(domain.RequestID(uuid.New()), sub, requestcontext.Now(ctx))
	if err != nil {
		s.metrics.IncrementSubmit("invalid")
		return nil, err
	}

	taken, err := s.issuer.UsernameExists(ctx, req.RequestedUsername)
	if err != nil {
		return nil, err
	}
	if taken {
		s.metrics.IncrementSubmit("username_taken")
		return nil, dErrors.Newf(dErrors.CodeUsernameTaken, "username %s is already taken", req.RequestedUsername)
	}

	if err := s.requests.CreatePending(ctx, req); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.metrics.IncrementSubmit("duplicate")
			return nil, dErrors.Newf(dErrors.CodeDuplicateRequest,
				"a pending request already exists for badge %s or username %s", req.BadgeNumber, req.RequestedUsername)
		}
		s.metrics.IncrementSubmit("error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store access request")
	}
	s.metrics.IncrementSubmit("accepted")

	s.emit(ctx, audit.Event{
		Action:  audit.EventAccessRequestSubmitted,
		Subject: req.RequestedUsername,
		Detail:  "badge " + req.BadgeNumber,
	})
	return req, nil
}

// ApprovalResult carries the provisioned account and the plaintext temporary
// secret. This response is the only place the plaintext ever exists; it is
// not logged and not retrievable afterwards.
type ApprovalResult struct {
	Request         *models.AccessRequest   `json:"request"`
	Account         *identitymodels.Account `json:"account"`
	TemporarySecret string                  `json:"temporary_secret"`
}

// Approve transitions a pending request to approved and provisions the
// account in one transaction. Username uniqueness at provisioning time is the
// final authority: a losing race leaves the request pending.
func (s *Service) Approve(ctx context.Context, reviewer domain.Actor, id domain.RequestID, role domain.Role, notes string) (*ApprovalResult, error) {
	if !policy.Allowed(reviewer, policy.ActionReviewAdmission, policy.Resource{Kind: policy.KindAccessRequest}) {
		s.metrics.IncrementReview("approve", "forbidden")
		return nil, dErrors.New(dErrors.CodeForbidden, "not permitted to review access requests")
	}
	if role == "" {
		role = domain.RoleUser
	}

	req, err := s.loadPending(ctx, id)
	if err != nil {
		s.metrics.IncrementReview("approve", "rejected")
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var result ApprovalResult
	err = s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		account, plaintext, err := s.issuer.Provision(ctx, identityservice.ProvisionInput{
			Username:    req.RequestedUsername,
			FullName:    req.FullName,
			BadgeNumber: req.BadgeNumber,
			Role:        role,
			Department:  req.Department,
		})
		if err != nil {
			return err
		}
		if err := s.requests.MarkReviewed(ctx, id, models.StatusApproved, reviewer.Username, notes, now); err != nil {
			if errors.Is(err, sentinel.ErrVersionConflict) {
				return dErrors.New(dErrors.CodeAlreadyReviewed, "request was already reviewed")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark request reviewed")
		}
		result.Account = account
		result.TemporarySecret = plaintext
		return nil
	})
	if err != nil {
		s.metrics.IncrementReview("approve", "rejected")
		return nil, err
	}
	s.metrics.IncrementReview("approve", "applied")

	req.ApplyReview(models.StatusApproved, reviewer.Username, notes, now)
	result.Request = req

	s.emit(ctx, audit.Event{
		Action:  audit.EventAccessRequestApproved,
		Actor:   reviewer.Username,
		Subject: req.RequestedUsername,
	})
	return &result, nil
}

// Deny transitions a pending request to denied. No account side effects.
func (s *Service) Deny(ctx context.Context, reviewer domain.Actor, id domain.RequestID, notes string) (*models.AccessRequest, error) {
	if !policy.Allowed(reviewer, policy.ActionReviewAdmission, policy.Resource{Kind: policy.KindAccessRequest}) {
		s.metrics.IncrementReview("deny", "forbidden")
		return nil, dErrors.New(dErrors.CodeForbidden, "not permitted to review access requests")
	}

	req, err := s.loadPending(ctx, id)
	if err != nil {
		s.metrics.IncrementReview("deny", "rejected")
		return nil, err
	}

	now := requestcontext.Now(ctx)
	if err := s.requests.MarkReviewed(ctx, id, models.StatusDenied, reviewer.Username, notes, now); err != nil {
		s.metrics.IncrementReview("deny", "rejected")
		if errors.Is(err, sentinel.ErrVersionConflict) {
			return nil, dErrors.New(dErrors.CodeAlreadyReviewed, "request was already reviewed")
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "access request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark request reviewed")
	}
	s.metrics.IncrementReview("deny", "applied")

	req.ApplyReview(models.StatusDenied, reviewer.Username, notes, now)
	s.emit(ctx, audit.Event{
		Action:  audit.EventAccessRequestDenied,
		Actor:   reviewer.Username,
		Subject: req.RequestedUsername,
	})
	return req, nil
}

// List returns requests, optionally filtered by status.
func (s *Service) List(ctx context.Context, reviewer domain.Actor, status string) ([]models.AccessRequest, error) {
	if !policy.Allowed(reviewer, policy.ActionRead, policy.Resource{Kind: policy.KindAccessRequest}) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not permitted to list access requests")
	}
	if status != "" && status != models.StatusPending && status != models.StatusApproved && status != models.StatusDenied {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown status filter %q", status)
	}
	out, err := s.requests.List(ctx, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list access requests")
	}
	return out, nil
}

func (s *Service) loadPending(ctx context.Context, id domain.RequestID) (*models.AccessRequest, error) {
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "access request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load access request")
	}
	if err := req.CanReview(); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "timeline emit failed", "action", event.Action, "error", err)
	}
}
