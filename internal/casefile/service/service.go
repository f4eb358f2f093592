package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"custodia/internal/audit"
	"custodia/internal/casefile/models"
	"custodia/internal/policy"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/requestcontext"
)

// CaseStore is the persistence surface the case service needs.
type CaseStore interface {
	Create(ctx context.Context, c *models.Case) error
	FindByID(ctx context.Context, id domain.CaseID) (*models.Case, error)
	NextSequence(ctx context.Context, yearPrefix string) (int, error)
}

// AuditPublisher records timeline events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service handles the minimal case surface the evidence core depends on.
type Service struct {
	cases  CaseStore
	audit  AuditPublisher
	logger *slog.Logger
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(cases CaseStore, audit AuditPublisher, opts ...Option) *Service {
	s := &Service{cases: cases, audit: audit}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// numberAttempts bounds retries when two callers race for the same sequence.
const numberAttempts = 3

// Create opens a case with an auto-assigned YY-NNNN number.
func (s *Service) Create(ctx context.Context, actor domain.Actor, name, department string) (*models.Case, error) {
	if !policy.Allowed(actor, policy.ActionWrite, policy.Resource{Kind: policy.KindCase, Department: department}) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not permitted to open cases")
	}

	now := requestcontext.Now(ctx)
	yearPrefix := now.Format("06")

	var created *models.Case
	for attempt := 0; attempt < numberAttempts; attempt++ {
		seq, err := s.cases.NextSequence(ctx, yearPrefix)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate case number")
		}
		number := fmt.Sprintf("%s-%04d", yearPrefix, seq)

		c, err := models.NewCase(domain.CaseID(uuid.New()), number, name, department, now)
		if err != nil {
			return nil, err
		}
		if err := s.cases.Create(ctx, c); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				continue // lost the race for this number, re-read the sequence
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create case")
		}
		created = c
		break
	}
	if created == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "could not allocate a unique case number, retry")
	}

	s.emit(ctx, audit.Event{
		Action:  audit.EventCaseOpened,
		Actor:   actor.Username,
		CaseID:  created.ID.String(),
		Subject: created.Number,
	})
	return created, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.audit.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "timeline emit failed", "action", event.Action, "error", err)
	}
}

// Get returns a case by id.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id domain.CaseID) (*models.Case, error) {
	c, err := s.cases.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "case not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load case")
	}
	if !policy.Allowed(actor, policy.ActionRead, policy.Resource{Kind: policy.KindCase, Department: c.Department}) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not permitted to read cases")
	}
	return c, nil
}
