package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"custodia/internal/audit"
	casemodels "custodia/internal/casefile/models"
	"custodia/internal/evidence/metrics"
	"custodia/internal/evidence/models"
	"custodia/internal/evidence/store"
	"custodia/internal/policy"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/requestcontext"
)

var tracer = otel.Tracer("custodia/evidence")

// CaseDirectory resolves case references on intake.
type CaseDirectory interface {
	FindByID(ctx context.Context, id domain.CaseID) (*casemodels.Case, error)
}

// AuditPublisher records timeline events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// AppendResult is the outcome of a successful ledger append. Warning is set
// when the timeline side-effect failed after the append committed; the ledger
// write stands regardless.
type AppendResult struct {
	Transfer *models.CustodyTransfer `json:"transfer"`
	Warning  string                  `json:"warning,omitempty"`
}

// Service orchestrates the evidence registry and its custody ledger.
type Service struct {
	store          store.Store
	cases          CaseDirectory
	analysisDepts  map[string]bool
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

// New constructs a Service. analysisDepartments names the departments that
// qualify an item for the in_analysis status.
func New(st store.Store, cases CaseDirectory, analysisDepartments []string, opts ...Option) *Service {
	s := &Service{
		store:         st,
		cases:         cases,
		analysisDepts: make(map[string]bool, len(analysisDepartments)),
	}
	for _, dept := range analysisDepartments {
		s.analysisDepts[dept] = true
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers an evidence item on intake.
func (s *Service) Create(ctx context.Context, actor domain.Actor, caseID domain.CaseID, attrs models.Attributes, originDepartment string) (*models.EvidenceItem, error) {
	if !policy.Allowed(actor, policy.ActionWrite, policy.Resource{Kind: policy.KindEvidence, Department: originDepartment}) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not permitted to register evidence")
	}

	if _, err := s.cases.FindByID(ctx, caseID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeValidation, "case %s does not exist", caseID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve case")
	}

	item, err := models.NewEvidenceItem(domain.EvidenceID(uuid.New()), caseID, attrs, originDepartment, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, item); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "evidence number %s is already registered", item.EvidenceNumber)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create evidence")
	}

	s.emit(ctx, audit.Event{
		Action:     audit.EventEvidenceCreated,
		Actor:      actor.Username,
		CaseID:     caseID.String(),
		EvidenceID: item.ID.String(),
		Subject:    item.EvidenceNumber,
	})
	return item, nil
}

// Get returns a single registry record.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id domain.EvidenceID) (*models.EvidenceItem, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.Allowed(actor, policy.ActionRead, policy.Resource{Kind: policy.KindEvidence, Department: item.CurrentDepartment}) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not permitted to read evidence")
	}
	return item, nil
}

// UpdateStatus moves an item through the lifecycle state machine. Leaving
// collected additionally requires that the ledger has moved the item to an
// analysis-capable department.
func (s *Service) UpdateStatus(ctx context.Context, actor domain.Actor, id domain.EvidenceID, next models.Status) (*models.EvidenceItem, error) {
	ctx, span := tracer.Start(ctx, "evidence.UpdateStatus")
	defer span.End()
	span.SetAttributes(attribute.String("evidence.status", string(next)))

	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.Allowed(actor, policy.ActionWrite, policy.Resource{Kind: policy.KindEvidence, Department: item.CurrentDepartment}) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not permitted to change evidence status")
	}

	if err := item.CanTransitionTo(next); err != nil {
		s.incrementTransition(string(next), "rejected")
		return nil, err
	}
	if item.Status == models.StatusCollected && next == models.StatusInAnalysis {
		if item.TransferCount == 0 {
			s.incrementTransition(string(next), "rejected")
			return nil, dErrors.New(dErrors.CodeInvalidTransition, "evidence must be transferred to an analysis department before analysis can begin")
		}
		if !s.analysisDepts[item.CurrentDepartment] {
			s.incrementTransition(string(next), "rejected")
			return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "department %s cannot perform analysis", item.CurrentDepartment)
		}
	}

	if err := s.store.UpdateStatus(ctx, id, item.Status, next, item.TransferCount); err != nil {
		s.incrementTransition(string(next), "error")
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "evidence not found")
		}
		if errors.Is(err, sentinel.ErrVersionConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "evidence status changed concurrently, re-read and retry")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update evidence status")
	}
	s.incrementTransition(string(next), "applied")

	s.emit(ctx, audit.Event{
		Action:     audit.EventEvidenceStatusChanged,
		Actor:      actor.Username,
		CaseID:     item.CaseID.String(),
		EvidenceID: item.ID.String(),
		Subject:    item.EvidenceNumber,
		Detail:     string(item.Status) + " -> " + string(next),
	})

	item.Status = next
	return item, nil
}

// SetDamaged flags physical damage. The flag is audit metadata, so it stays
// writable even after the custody chain is sealed.
func (s *Service) SetDamaged(ctx context.Context, actor domain.Actor, id domain.EvidenceID, damaged bool) (*models.EvidenceItem, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.Allowed(actor, policy.ActionWrite, policy.Resource{Kind: policy.KindEvidence, Department: item.CurrentDepartment}) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not permitted to flag evidence")
	}

	if err := s.store.SetDamaged(ctx, id, damaged); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "evidence not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to flag evidence")
	}

	if damaged {
		s.emit(ctx, audit.Event{
			Action:     audit.EventEvidenceDamagedFlagged,
			Actor:      actor.Username,
			CaseID:     item.CaseID.String(),
			EvidenceID: item.ID.String(),
			Subject:    item.EvidenceNumber,
		})
	}
	item.Damaged = damaged
	return item, nil
}

// Delete removes an item created in error. Any custody history makes the
// record permanent.
func (s *Service) Delete(ctx context.Context, actor domain.Actor, id domain.EvidenceID) error {
	item, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !policy.Allowed(actor, policy.ActionDelete, policy.Resource{Kind: policy.KindEvidence, Department: item.CurrentDepartment}) {
		return dErrors.New(dErrors.CodeForbidden, "not permitted to delete evidence")
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "evidence not found")
		}
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Newf(dErrors.CodeConflict, "evidence %s has custody history and cannot be deleted", item.EvidenceNumber)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete evidence")
	}

	s.emit(ctx, audit.Event{
		Action:     audit.EventEvidenceDeleted,
		Actor:      actor.Username,
		CaseID:     item.CaseID.String(),
		EvidenceID: item.ID.String(),
		Subject:    item.EvidenceNumber,
	})
	return nil
}

// AppendTransfer records a custodial handoff. fromDepartment is optional; when
// supplied it must name the actual current custodian.
func (s *Service) AppendTransfer(ctx context.Context, actor domain.Actor, id domain.EvidenceID, fromDepartment, toDepartment, notes string) (*AppendResult, error) {
	ctx, span := tracer.Start(ctx, "evidence.AppendTransfer")
	defer span.End()
	started := time.Now()

	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.Allowed(actor, policy.ActionTransfer, policy.Resource{Kind: policy.KindEvidence, Department: item.CurrentDepartment}) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not permitted to transfer evidence")
	}

	if item.Status.IsTerminal() {
		s.incrementTransfer("terminal")
		return nil, dErrors.Newf(dErrors.CodeTerminalState, "evidence %s is %s, custody chain is sealed", item.EvidenceNumber, item.Status)
	}
	if fromDepartment != "" && fromDepartment != item.CurrentDepartment {
		s.incrementTransfer("custody_conflict")
		return nil, dErrors.Newf(dErrors.CodeCustodyConflict,
			"evidence %s is currently held by %s, not %s as claimed", item.EvidenceNumber, item.CurrentDepartment, fromDepartment)
	}

	transfer, err := models.NewCustodyTransfer(
		domain.TransferID(uuid.New()), id, item.TransferCount+1,
		item.CurrentDepartment, toDepartment, actor.Username, notes,
		requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.store.AppendTransfer(ctx, transfer, item.TransferCount); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			s.incrementTransfer("terminal")
			return nil, dErrors.Newf(dErrors.CodeTerminalState,
				"evidence %s reached a terminal status, custody chain is sealed", item.EvidenceNumber)
		}
		if errors.Is(err, sentinel.ErrVersionConflict) {
			s.incrementTransfer("custody_conflict")
			return nil, dErrors.Newf(dErrors.CodeCustodyConflict,
				"evidence %s changed custody concurrently, re-read and retry", item.EvidenceNumber)
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "evidence not found")
		}
		s.incrementTransfer("error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append custody transfer")
	}
	s.incrementTransfer("appended")
	s.observeAppendLatency(time.Since(started))

	result := &AppendResult{Transfer: transfer}
	if s.auditPublisher != nil {
		err := s.auditPublisher.Emit(ctx, audit.Event{
			Action:     audit.EventCustodyTransferAppended,
			Actor:      actor.Username,
			CaseID:     item.CaseID.String(),
			EvidenceID: item.ID.String(),
			Subject:    item.EvidenceNumber,
			Detail:     transfer.FromDepartment + " -> " + transfer.ToDepartment,
			RequestID:  requestcontext.RequestID(ctx),
		})
		if err != nil {
			// The ledger append committed; the timeline entry did not. Surface
			// the gap to the caller instead of rolling back.
			s.logWarn(ctx, "timeline emit failed after custody append",
				"evidence_id", item.ID, "error", err)
			result.Warning = "transfer recorded, but the timeline entry could not be written"
		}
	}
	return result, nil
}

// ListTransfers returns the full custody ledger in append order.
func (s *Service) ListTransfers(ctx context.Context, actor domain.Actor, id domain.EvidenceID) ([]models.CustodyTransfer, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.Allowed(actor, policy.ActionRead, policy.Resource{Kind: policy.KindEvidence, Department: item.CurrentDepartment}) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not permitted to read the custody ledger")
	}

	transfers, err := s.store.ListTransfers(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list custody transfers")
	}
	return transfers, nil
}

func (s *Service) load(ctx context.Context, id domain.EvidenceID) (*models.EvidenceItem, error) {
	item, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "evidence not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load evidence")
	}
	return item, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logWarn(ctx, "timeline emit failed", "action", event.Action, "error", err)
	}
}

func (s *Service) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}

func (s *Service) incrementTransfer(outcome string) {
	s.metrics.IncrementTransfer(outcome)
}

func (s *Service) incrementTransition(status, outcome string) {
	s.metrics.IncrementTransition(status, outcome)
}

func (s *Service) observeAppendLatency(d time.Duration) {
	s.metrics.ObserveAppendLatency(d)
}
