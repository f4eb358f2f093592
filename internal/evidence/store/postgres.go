package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"custodia/internal/evidence/models"
	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	txcontext "custodia/pkg/platform/tx"
)

// Postgres persists evidence items and their custody ledgers.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) conn(ctx context.Context) dbConn {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) Create(ctx context.Context, item *models.EvidenceItem) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO evidence_items (
			id, evidence_number, lab_number, case_id, device_type, brand, model,
			serial_number, description, status, damaged, origin_department,
			current_department, transfer_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, uuid.UUID(item.ID), item.EvidenceNumber, item.LabNumber, uuid.UUID(item.CaseID),
		item.DeviceType, item.Brand, item.Model, item.SerialNumber, item.Description,
		item.Status, item.Damaged, item.OriginDepartment, item.CurrentDepartment,
		item.TransferCount, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("evidence number %s: %w", item.EvidenceNumber, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create evidence: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.EvidenceID) (*models.EvidenceItem, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, evidence_number, lab_number, case_id, device_type, brand, model,
		       serial_number, description, status, damaged, origin_department,
		       current_department, transfer_count, created_at, updated_at
		FROM evidence_items
		WHERE id = $1
	`, uuid.UUID(id))
	return scanItem(row)
}

func scanItem(row *sql.Row) (*models.EvidenceItem, error) {
	var item models.EvidenceItem
	var rawID, rawCaseID uuid.UUID
	err := row.Scan(&rawID, &item.EvidenceNumber, &item.LabNumber, &rawCaseID,
		&item.DeviceType, &item.Brand, &item.Model, &item.SerialNumber,
		&item.Description, &item.Status, &item.Damaged, &item.OriginDepartment,
		&item.CurrentDepartment, &item.TransferCount, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find evidence: %w", err)
	}
	item.ID = domain.EvidenceID(rawID)
	item.CaseID = domain.CaseID(rawCaseID)
	return &item, nil
}

// UpdateStatus is a compare-and-set on status and transfer count. Conditioning
// on the count invalidates the caller's pre-read when a transfer lands between
// load and write; zero rows means the item moved under us or is gone.
func (s *Postgres) UpdateStatus(ctx context.Context, id domain.EvidenceID, from, to models.Status, expectedCount int) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE evidence_items
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3 AND transfer_count = $4
	`, to, uuid.UUID(id), from, expectedCount)
	if err != nil {
		return fmt.Errorf("update evidence status: %w", err)
	}
	return s.checkAffected(ctx, res, id, sentinel.ErrVersionConflict)
}

func (s *Postgres) SetDamaged(ctx context.Context, id domain.EvidenceID, damaged bool) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE evidence_items
		SET damaged = $1, updated_at = now()
		WHERE id = $2
	`, damaged, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("set evidence damaged: %w", err)
	}
	return s.checkAffected(ctx, res, id, sentinel.ErrNotFound)
}

// Delete removes an item only while its ledger is empty.
func (s *Postgres) Delete(ctx context.Context, id domain.EvidenceID) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		DELETE FROM evidence_items
		WHERE id = $1
		  AND NOT EXISTS (SELECT 1 FROM custody_transfers WHERE evidence_id = $1)
	`, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("delete evidence: %w", err)
	}
	return s.checkAffected(ctx, res, id, sentinel.ErrConflict)
}

// AppendTransfer inserts the ledger entry and advances the projection in one
// transaction. The conditional UPDATE on transfer_count is the serialization
// point: the losing concurrent writer affects zero rows and rolls back. The
// status guard keeps an append from landing after a terminal transition
// commits behind the caller's pre-read.
func (s *Postgres) AppendTransfer(ctx context.Context, transfer *models.CustodyTransfer, expectedCount int) error {
	runner := txcontext.NewSQLRunner(s.db)
	return runner.RunInTx(ctx, func(ctx context.Context) error {
		res, err := s.conn(ctx).ExecContext(ctx, `
			UPDATE evidence_items
			SET current_department = $1, transfer_count = transfer_count + 1, updated_at = $2
			WHERE id = $3 AND transfer_count = $4 AND status NOT IN ($5, $6)
		`, transfer.ToDepartment, transfer.TransferredAt, uuid.UUID(transfer.EvidenceID),
			expectedCount, models.StatusReleased, models.StatusDestroyed)
		if err != nil {
			return fmt.Errorf("advance custody projection: %w", err)
		}
		if err := s.checkAppendAffected(ctx, res, transfer.EvidenceID); err != nil {
			return err
		}

		_, err = s.conn(ctx).ExecContext(ctx, `
			INSERT INTO custody_transfers (
				id, evidence_id, seq, from_department, to_department,
				transferred_by, notes, transferred_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, uuid.UUID(transfer.ID), uuid.UUID(transfer.EvidenceID), transfer.Seq,
			transfer.FromDepartment, transfer.ToDepartment, transfer.TransferredBy,
			transfer.Notes, transfer.TransferredAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("ledger seq %d taken: %w", transfer.Seq, sentinel.ErrVersionConflict)
			}
			return fmt.Errorf("append custody transfer: %w", err)
		}
		return nil
	})
}

func (s *Postgres) ListTransfers(ctx context.Context, id domain.EvidenceID) ([]models.CustodyTransfer, error) {
	if _, err := s.FindByID(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, evidence_id, seq, from_department, to_department,
		       transferred_by, notes, transferred_at
		FROM custody_transfers
		WHERE evidence_id = $1
		ORDER BY seq
	`, uuid.UUID(id))
	if err != nil {
		return nil, fmt.Errorf("list custody transfers: %w", err)
	}
	defer rows.Close()

	var out []models.CustodyTransfer
	for rows.Next() {
		var t models.CustodyTransfer
		var rawID, rawEvidenceID uuid.UUID
		if err := rows.Scan(&rawID, &rawEvidenceID, &t.Seq, &t.FromDepartment,
			&t.ToDepartment, &t.TransferredBy, &t.Notes, &t.TransferredAt); err != nil {
			return nil, fmt.Errorf("scan custody transfer: %w", err)
		}
		t.ID = domain.TransferID(rawID)
		t.EvidenceID = domain.EvidenceID(rawEvidenceID)
		out = append(out, t)
	}
	return out, rows.Err()
}

// checkAffected distinguishes "row gone" from "condition not met" for
// conditional writes. notMet is the error returned when the row exists but
// the WHERE condition filtered it out.
func (s *Postgres) checkAffected(ctx context.Context, res sql.Result, id domain.EvidenceID, notMet error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM evidence_items WHERE id = $1)`, uuid.UUID(id),
	).Scan(&exists); err != nil {
		return fmt.Errorf("check evidence exists: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return notMet
}

// checkAppendAffected resolves a zero-row projection update to its cause:
// row gone, chain sealed by a terminal status, or a stale transfer count.
func (s *Postgres) checkAppendAffected(ctx context.Context, res sql.Result, id domain.EvidenceID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	var status models.Status
	err = s.conn(ctx).QueryRowContext(ctx,
		`SELECT status FROM evidence_items WHERE id = $1`, uuid.UUID(id),
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check evidence status: %w", err)
	}
	if status.IsTerminal() {
		return fmt.Errorf("evidence is %s: %w", status, sentinel.ErrInvalidState)
	}
	return sentinel.ErrVersionConflict
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
