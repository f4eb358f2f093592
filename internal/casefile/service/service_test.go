package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"custodia/internal/audit"
	auditmem "custodia/internal/audit/store/memory"
	"custodia/internal/casefile/store"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

type CaseServiceSuite struct {
	suite.Suite
	store   *store.InMemory
	sink    *auditmem.Store
	service *Service
	ctx     context.Context
}

func TestCaseServiceSuite(t *testing.T) {
	suite.Run(t, new(CaseServiceSuite))
}

func (s *CaseServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.sink = auditmem.New()
	s.service = New(s.store, audit.NewPublisher(s.sink))
	s.ctx = context.Background()
}

func (s *CaseServiceSuite) investigator() id.Actor {
	return id.Actor{
		AccountID:  id.AccountID(uuid.New()),
		Username:   "tmercer",
		Role:       id.RoleInvestigator,
		Department: "intake",
		Active:     true,
	}
}

func (s *CaseServiceSuite) TestCreate() {
	yearPrefix := time.Now().Format("06")

	s.Run("assigns sequential numbers", func() {
		first, err := s.service.Create(s.ctx, s.investigator(), "Warehouse burglary", "intake")
		s.Require().NoError(err)
		s.Equal(fmt.Sprintf("%s-0001", yearPrefix), first.Number)

		second, err := s.service.Create(s.ctx, s.investigator(), "Vehicle arson", "intake")
		s.Require().NoError(err)
		s.Equal(fmt.Sprintf("%s-0002", yearPrefix), second.Number)
	})

	s.Run("denies the user role", func() {
		actor := s.investigator()
		actor.Role = id.RoleUser
		_, err := s.service.Create(s.ctx, actor, "Warehouse burglary", "intake")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *CaseServiceSuite) TestGet() {
	created, err := s.service.Create(s.ctx, s.investigator(), "Warehouse burglary", "intake")
	s.Require().NoError(err)

	found, err := s.service.Get(s.ctx, s.investigator(), created.ID)
	s.Require().NoError(err)
	s.Equal(created.Number, found.Number)

	_, err = s.service.Get(s.ctx, s.investigator(), id.CaseID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *CaseServiceSuite) TestAuditTrail() {
	created, err := s.service.Create(s.ctx, s.investigator(), "Warehouse burglary", "intake")
	s.Require().NoError(err)

	events := s.sink.Events()
	s.Require().Len(events, 1)
	s.Equal(audit.EventCaseOpened, events[0].Action)
	s.Equal(created.Number, events[0].Subject)
}

type failingPublisher struct{}

func (failingPublisher) Emit(context.Context, audit.Event) error {
	return errors.New("broker unavailable")
}

// A timeline outage must not fail case creation; the gap gets logged instead.
func (s *CaseServiceSuite) TestEmitFailureIsLoggedNotReturned() {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	svc := New(s.store, failingPublisher{}, WithLogger(logger))

	created, err := svc.Create(s.ctx, s.investigator(), "Warehouse burglary", "intake")
	s.Require().NoError(err)
	s.Require().NotNil(created)

	found, err := s.store.FindByID(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created.Number, found.Number)
	s.Contains(buf.String(), "timeline emit failed")
}
