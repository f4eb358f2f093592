package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"custodia/internal/admission/models"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

type RequestStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestRequestStoreSuite(t *testing.T) {
	suite.Run(t, new(RequestStoreSuite))
}

func (s *RequestStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *RequestStoreSuite) newRequest(badge, username string) *models.AccessRequest {
	req, err := models.NewAccessRequest(id.RequestID(uuid.New()), models.Submission{
		FullName:          "Jane Doe",
		BadgeNumber:       badge,
		RequestedUsername: username,
	}, time.Now())
	s.Require().NoError(err)
	return req
}

func (s *RequestStoreSuite) TestPendingUniqueness() {
	s.Run("rejects second pending request for the same badge", func() {
		s.Require().NoError(s.store.CreatePending(s.ctx, s.newRequest("B-1", "alpha")))

		err := s.store.CreatePending(s.ctx, s.newRequest("B-1", "beta"))
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("rejects second pending request for the same username", func() {
		s.Require().NoError(s.store.CreatePending(s.ctx, s.newRequest("B-2", "gamma")))

		err := s.store.CreatePending(s.ctx, s.newRequest("B-3", "gamma"))
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("terminal requests do not block resubmission", func() {
		req := s.newRequest("B-4", "delta")
		s.Require().NoError(s.store.CreatePending(s.ctx, req))
		s.Require().NoError(s.store.MarkReviewed(s.ctx, req.ID, models.StatusDenied, "chief", "", time.Now()))

		s.Require().NoError(s.store.CreatePending(s.ctx, s.newRequest("B-4", "delta")))
	})
}

func (s *RequestStoreSuite) TestMarkReviewed() {
	s.Run("transitions pending exactly once", func() {
		req := s.newRequest("B-10", "once")
		s.Require().NoError(s.store.CreatePending(s.ctx, req))
		s.Require().NoError(s.store.MarkReviewed(s.ctx, req.ID, models.StatusApproved, "chief", "ok", time.Now()))

		err := s.store.MarkReviewed(s.ctx, req.ID, models.StatusDenied, "chief", "", time.Now())
		s.Require().ErrorIs(err, sentinel.ErrVersionConflict)

		found, err := s.store.FindByID(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, found.Status)
		s.Equal("chief", found.ReviewedBy)
		s.NotNil(found.ReviewedAt)
	})

	s.Run("unknown request returns ErrNotFound", func() {
		err := s.store.MarkReviewed(s.ctx, id.RequestID(uuid.New()), models.StatusDenied, "chief", "", time.Now())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *RequestStoreSuite) TestList() {
	pending := s.newRequest("B-20", "listed")
	denied := s.newRequest("B-21", "skipped")
	s.Require().NoError(s.store.CreatePending(s.ctx, pending))
	s.Require().NoError(s.store.CreatePending(s.ctx, denied))
	s.Require().NoError(s.store.MarkReviewed(s.ctx, denied.ID, models.StatusDenied, "chief", "", time.Now()))

	got, err := s.store.List(s.ctx, models.StatusPending)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("listed", got[0].RequestedUsername)

	all, err := s.store.List(s.ctx, "")
	s.Require().NoError(err)
	s.Len(all, 2)
}
