package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"custodia/internal/evidence/models"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

type EvidenceStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *EvidenceStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestEvidenceStoreSuite(t *testing.T) {
	suite.Run(t, new(EvidenceStoreSuite))
}

func (s *EvidenceStoreSuite) newItem(number string) *models.EvidenceItem {
	now := time.Now()
	return &models.EvidenceItem{
		ID:                id.EvidenceID(uuid.New()),
		EvidenceNumber:    number,
		CaseID:            id.CaseID(uuid.New()),
		DeviceType:        "laptop",
		Status:            models.StatusCollected,
		OriginDepartment:  "intake",
		CurrentDepartment: "intake",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (s *EvidenceStoreSuite) newTransfer(item *models.EvidenceItem, seq int, from, to string) *models.CustodyTransfer {
	return &models.CustodyTransfer{
		ID:             id.TransferID(uuid.New()),
		EvidenceID:     item.ID,
		Seq:            seq,
		FromDepartment: from,
		ToDepartment:   to,
		TransferredBy:  "tmercer",
		TransferredAt:  time.Now(),
	}
}

func (s *EvidenceStoreSuite) TestCreateAndFind() {
	s.Run("creates and finds item by ID", func() {
		item := s.newItem("E-1001")
		s.Require().NoError(s.store.Create(s.ctx, item))

		found, err := s.store.FindByID(s.ctx, item.ID)
		s.Require().NoError(err)
		s.Equal("E-1001", found.EvidenceNumber)
		s.Equal("intake", found.CurrentDepartment)
		s.Zero(found.TransferCount)
	})

	s.Run("rejects duplicate evidence number", func() {
		first := s.newItem("E-1002")
		second := s.newItem("E-1002")
		s.Require().NoError(s.store.Create(s.ctx, first))

		err := s.store.Create(s.ctx, second)
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, id.EvidenceID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *EvidenceStoreSuite) TestAppendTransfer() {
	s.Run("append advances projection and count together", func() {
		item := s.newItem("E-2001")
		s.Require().NoError(s.store.Create(s.ctx, item))

		transfer := s.newTransfer(item, 1, "intake", "lab-a")
		s.Require().NoError(s.store.AppendTransfer(s.ctx, transfer, 0))

		found, err := s.store.FindByID(s.ctx, item.ID)
		s.Require().NoError(err)
		s.Equal("lab-a", found.CurrentDepartment)
		s.Equal(1, found.TransferCount)

		entries, err := s.store.ListTransfers(s.ctx, item.ID)
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal("lab-a", entries[0].ToDepartment)
	})

	s.Run("stale expected count leaves ledger untouched", func() {
		item := s.newItem("E-2002")
		s.Require().NoError(s.store.Create(s.ctx, item))
		s.Require().NoError(s.store.AppendTransfer(s.ctx, s.newTransfer(item, 1, "intake", "lab-a"), 0))

		err := s.store.AppendTransfer(s.ctx, s.newTransfer(item, 1, "intake", "lab-b"), 0)
		s.Require().ErrorIs(err, sentinel.ErrVersionConflict)

		found, err := s.store.FindByID(s.ctx, item.ID)
		s.Require().NoError(err)
		s.Equal("lab-a", found.CurrentDepartment)
		s.Equal(1, found.TransferCount)

		entries, err := s.store.ListTransfers(s.ctx, item.ID)
		s.Require().NoError(err)
		s.Len(entries, 1)
	})

	s.Run("unknown item returns ErrNotFound", func() {
		ghost := s.newItem("E-2003")
		err := s.store.AppendTransfer(s.ctx, s.newTransfer(ghost, 1, "intake", "lab-a"), 0)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("terminal status seals the chain even with a fresh count", func() {
		item := s.newItem("E-2004")
		s.Require().NoError(s.store.Create(s.ctx, item))
		s.Require().NoError(s.store.UpdateStatus(s.ctx, item.ID, models.StatusCollected, models.StatusReleased, 0))

		err := s.store.AppendTransfer(s.ctx, s.newTransfer(item, 1, "intake", "lab-a"), 0)
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)

		found, err := s.store.FindByID(s.ctx, item.ID)
		s.Require().NoError(err)
		s.Equal("intake", found.CurrentDepartment)
		s.Zero(found.TransferCount)

		entries, err := s.store.ListTransfers(s.ctx, item.ID)
		s.Require().NoError(err)
		s.Empty(entries)
	})
}

func (s *EvidenceStoreSuite) TestListTransfersOrder() {
	item := s.newItem("E-3001")
	s.Require().NoError(s.store.Create(s.ctx, item))
	s.Require().NoError(s.store.AppendTransfer(s.ctx, s.newTransfer(item, 1, "intake", "lab-a"), 0))
	s.Require().NoError(s.store.AppendTransfer(s.ctx, s.newTransfer(item, 2, "lab-a", "storage"), 1))
	s.Require().NoError(s.store.AppendTransfer(s.ctx, s.newTransfer(item, 3, "storage", "lab-b"), 2))

	entries, err := s.store.ListTransfers(s.ctx, item.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 3)
	for i, entry := range entries {
		s.Equal(i+1, entry.Seq)
	}
	// no-gap property: each from matches the previous to
	for i := 1; i < len(entries); i++ {
		s.Equal(entries[i-1].ToDepartment, entries[i].FromDepartment)
	}
}

func (s *EvidenceStoreSuite) TestUpdateStatus() {
	s.Run("compare and set succeeds from expected status", func() {
		item := s.newItem("E-4001")
		s.Require().NoError(s.store.Create(s.ctx, item))

		s.Require().NoError(s.store.UpdateStatus(s.ctx, item.ID, models.StatusCollected, models.StatusInAnalysis, 0))

		found, err := s.store.FindByID(s.ctx, item.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusInAnalysis, found.Status)
		s.True(found.UpdatedAt.After(item.UpdatedAt))
	})

	s.Run("stale expected status fails", func() {
		item := s.newItem("E-4002")
		s.Require().NoError(s.store.Create(s.ctx, item))

		err := s.store.UpdateStatus(s.ctx, item.ID, models.StatusInStorage, models.StatusInAnalysis, 0)
		s.Require().ErrorIs(err, sentinel.ErrVersionConflict)
	})

	s.Run("stale transfer count fails", func() {
		item := s.newItem("E-4003")
		s.Require().NoError(s.store.Create(s.ctx, item))
		s.Require().NoError(s.store.AppendTransfer(s.ctx, s.newTransfer(item, 1, "intake", "lab-a"), 0))

		err := s.store.UpdateStatus(s.ctx, item.ID, models.StatusCollected, models.StatusInAnalysis, 0)
		s.Require().ErrorIs(err, sentinel.ErrVersionConflict)

		found, err := s.store.FindByID(s.ctx, item.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusCollected, found.Status)
	})
}

func (s *EvidenceStoreSuite) TestDelete() {
	s.Run("deletes item with empty ledger", func() {
		item := s.newItem("E-5001")
		s.Require().NoError(s.store.Create(s.ctx, item))
		s.Require().NoError(s.store.Delete(s.ctx, item.ID))

		_, err := s.store.FindByID(s.ctx, item.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("refuses to delete item with custody history", func() {
		item := s.newItem("E-5002")
		s.Require().NoError(s.store.Create(s.ctx, item))
		s.Require().NoError(s.store.AppendTransfer(s.ctx, s.newTransfer(item, 1, "intake", "lab-a"), 0))

		err := s.store.Delete(s.ctx, item.ID)
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("frees the evidence number for reuse after delete", func() {
		item := s.newItem("E-5003")
		s.Require().NoError(s.store.Create(s.ctx, item))
		s.Require().NoError(s.store.Delete(s.ctx, item.ID))

		again := s.newItem("E-5003")
		s.Require().NoError(s.store.Create(s.ctx, again))
	})
}
