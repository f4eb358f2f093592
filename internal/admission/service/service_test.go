package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"custodia/internal/admission/models"
	"custodia/internal/admission/store"
	"custodia/internal/audit"
	auditmem "custodia/internal/audit/store/memory"
	identityservice "custodia/internal/identity/service"
	identitystore "custodia/internal/identity/store"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	txcontext "custodia/pkg/platform/tx"
	"custodia/pkg/secrets"
)

type AdmissionServiceSuite struct {
	suite.Suite
	requests *store.InMemory
	accounts *identitystore.InMemory
	sink     *auditmem.Store
	issuer   *identityservice.Service
	service  *Service
	ctx      context.Context
}

func TestAdmissionServiceSuite(t *testing.T) {
	suite.Run(t, new(AdmissionServiceSuite))
}

func (s *AdmissionServiceSuite) SetupTest() {
	s.requests = store.NewInMemory()
	s.accounts = identitystore.NewInMemory()
	s.sink = auditmem.New()
	s.issuer = identityservice.New(s.accounts, nil)
	s.service = New(s.requests, s.issuer, txcontext.NoopRunner{},
		WithAuditPublisher(audit.NewPublisher(s.sink)))
	s.ctx = context.Background()
}

func (s *AdmissionServiceSuite) admin() id.Actor {
	return id.Actor{
		AccountID: id.AccountID(uuid.New()),
		Username:  "chief",
		Role:      id.RoleAdmin,
		Active:    true,
	}
}

func (s *AdmissionServiceSuite) submission(badge, username string) models.Submission {
	return models.Submission{
		FullName:          "Jane Doe",
		BadgeNumber:       badge,
		Department:        "intake",
		RequestedUsername: username,
		Reason:            "new hire",
	}
}

func (s *AdmissionServiceSuite) TestSubmit() {
	s.Run("persists a pending request without creating an account", func() {
		req, err := s.service.Submit(s.ctx, s.submission("B-1", "jdoe"))
		s.Require().NoError(err)
		s.Equal(models.StatusPending, req.Status)

		exists, err := s.accounts.UsernameExists(s.ctx, "jdoe")
		s.Require().NoError(err)
		s.False(exists)
	})

	s.Run("rejects missing badge number", func() {
		sub := s.submission("", "nobadge")
		_, err := s.service.Submit(s.ctx, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects duplicate pending badge", func() {
		_, err := s.service.Submit(s.ctx, s.submission("B-42", "first"))
		s.Require().NoError(err)

		_, err = s.service.Submit(s.ctx, s.submission("B-42", "second"))
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateRequest))
	})

	s.Run("rejects duplicate pending username", func() {
		_, err := s.service.Submit(s.ctx, s.submission("B-50", "wanted"))
		s.Require().NoError(err)

		_, err = s.service.Submit(s.ctx, s.submission("B-51", "wanted"))
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateRequest))
	})

	s.Run("rejects username already mapped to an account", func() {
		req, err := s.service.Submit(s.ctx, s.submission("B-60", "provisioned"))
		s.Require().NoError(err)
		_, err = s.service.Approve(s.ctx, s.admin(), req.ID, id.RoleUser, "")
		s.Require().NoError(err)

		_, err = s.service.Submit(s.ctx, s.submission("B-61", "provisioned"))
		s.True(dErrors.HasCode(err, dErrors.CodeUsernameTaken))
	})
}

func (s *AdmissionServiceSuite) TestApprove() {
	s.Run("provisions account and discloses secret once", func() {
		req, err := s.service.Submit(s.ctx, s.submission("B-42", "jdoe"))
		s.Require().NoError(err)

		result, err := s.service.Approve(s.ctx, s.admin(), req.ID, id.RoleAnalyst, "verified in person")
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, result.Request.Status)
		s.Equal("chief", result.Request.ReviewedBy)
		s.Equal("jdoe", result.Account.Username)
		s.Equal(id.RoleAnalyst, result.Account.Role)
		s.Len(result.TemporarySecret, secrets.TempSecretLength)

		// only the hash is persisted; the plaintext authenticates against it
		stored, err := s.accounts.FindByUsername(s.ctx, "jdoe")
		s.Require().NoError(err)
		s.NotEqual(result.TemporarySecret, stored.SecretHash)
		s.NoError(secrets.Verify(result.TemporarySecret, stored.SecretHash))
		s.True(stored.MustChangeSecret)
	})

	s.Run("second approve fails AlreadyReviewed without side effects", func() {
		req, err := s.service.Submit(s.ctx, s.submission("B-43", "rsmith"))
		s.Require().NoError(err)
		_, err = s.service.Approve(s.ctx, s.admin(), req.ID, id.RoleUser, "")
		s.Require().NoError(err)

		_, err = s.service.Approve(s.ctx, s.admin(), req.ID, id.RoleUser, "")
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyReviewed))
	})

	s.Run("username race leaves the request pending", func() {
		req, err := s.service.Submit(s.ctx, s.submission("B-44", "shared"))
		s.Require().NoError(err)

		// the username got claimed between submit and approve
		_, _, err = s.issuer.Provision(s.ctx, identityservice.ProvisionInput{
			Username: "shared", Role: id.RoleUser,
		})
		s.Require().NoError(err)

		_, err = s.service.Approve(s.ctx, s.admin(), req.ID, id.RoleUser, "")
		s.Require().True(dErrors.HasCode(err, dErrors.CodeUsernameTaken))

		found, err := s.requests.FindByID(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, found.Status)
	})

	s.Run("non-admin reviewer is forbidden", func() {
		req, err := s.service.Submit(s.ctx, s.submission("B-48", "blocked"))
		s.Require().NoError(err)

		reviewer := s.admin()
		reviewer.Role = id.RoleInvestigator
		_, err = s.service.Approve(s.ctx, reviewer, req.ID, id.RoleUser, "")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		found, err := s.requests.FindByID(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, found.Status)
	})

	s.Run("unknown request is not found", func() {
		_, err := s.service.Approve(s.ctx, s.admin(), id.RequestID(uuid.New()), id.RoleUser, "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *AdmissionServiceSuite) TestDeny() {
	s.Run("denies without account side effects", func() {
		req, err := s.service.Submit(s.ctx, s.submission("B-70", "refused"))
		s.Require().NoError(err)

		denied, err := s.service.Deny(s.ctx, s.admin(), req.ID, "badge could not be verified")
		s.Require().NoError(err)
		s.Equal(models.StatusDenied, denied.Status)
		s.Equal("badge could not be verified", denied.ReviewNotes)

		exists, err := s.accounts.UsernameExists(s.ctx, "refused")
		s.Require().NoError(err)
		s.False(exists)
	})

	s.Run("deny after approve fails AlreadyReviewed", func() {
		req, err := s.service.Submit(s.ctx, s.submission("B-71", "flipflop"))
		s.Require().NoError(err)
		_, err = s.service.Approve(s.ctx, s.admin(), req.ID, id.RoleUser, "")
		s.Require().NoError(err)

		_, err = s.service.Deny(s.ctx, s.admin(), req.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyReviewed))
	})

	s.Run("denied badge may submit again", func() {
		req, err := s.service.Submit(s.ctx, s.submission("B-72", "again"))
		s.Require().NoError(err)
		_, err = s.service.Deny(s.ctx, s.admin(), req.ID, "")
		s.Require().NoError(err)

		_, err = s.service.Submit(s.ctx, s.submission("B-72", "again"))
		s.Require().NoError(err)
	})
}

func (s *AdmissionServiceSuite) TestList() {
	s.Run("filters by status", func() {
		first, err := s.service.Submit(s.ctx, s.submission("B-80", "one"))
		s.Require().NoError(err)
		_, err = s.service.Submit(s.ctx, s.submission("B-81", "two"))
		s.Require().NoError(err)
		_, err = s.service.Deny(s.ctx, s.admin(), first.ID, "")
		s.Require().NoError(err)

		pending, err := s.service.List(s.ctx, s.admin(), models.StatusPending)
		s.Require().NoError(err)
		s.Len(pending, 1)
		s.Equal("two", pending[0].RequestedUsername)
	})

	s.Run("non-admin may not list", func() {
		actor := s.admin()
		actor.Role = id.RoleAnalyst
		_, err := s.service.List(s.ctx, actor, "")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *AdmissionServiceSuite) TestAuditTrail() {
	req, err := s.service.Submit(s.ctx, s.submission("B-90", "audited"))
	s.Require().NoError(err)
	result, err := s.service.Approve(s.ctx, s.admin(), req.ID, id.RoleUser, "")
	s.Require().NoError(err)

	events := s.sink.Events()
	s.Require().Len(events, 2)
	s.Equal(audit.EventAccessRequestSubmitted, events[0].Action)
	s.Equal(audit.EventAccessRequestApproved, events[1].Action)
	// the plaintext secret never reaches the audit trail
	for _, event := range events {
		s.NotContains(event.Detail, result.TemporarySecret)
		s.NotContains(event.Subject, result.TemporarySecret)
	}
}
