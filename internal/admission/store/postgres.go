package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"custodia/internal/admission/models"
	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	txcontext "custodia/pkg/platform/tx"
)

// Postgres persists access requests. The partial unique indexes on
// (badge_number) and (requested_username) where status = 'pending' make the
// duplicate check and the insert one atomic statement.
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

func (s *Postgres) CreatePending(ctx context.Context, req *models.AccessRequest) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO access_requests (
			id, full_name, badge_number, department, phone_extension,
			requested_username, reason, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(req.ID), req.FullName, req.BadgeNumber, req.Department,
		req.PhoneExtension, req.RequestedUsername, req.Reason, req.Status, req.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("pending request exists (%s): %w", pgErr.ConstraintName, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create access request: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.RequestID) (*models.AccessRequest, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, full_name, badge_number, department, phone_extension,
		       requested_username, reason, status, created_at,
		       reviewed_by, reviewed_at, review_notes
		FROM access_requests
		WHERE id = $1
	`, uuid.UUID(id))
	req, err := scanRequest(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find access request: %w", err)
	}
	return req, nil
}

func (s *Postgres) List(ctx context.Context, status string) ([]models.AccessRequest, error) {
	query := `
		SELECT id, full_name, badge_number, department, phone_extension,
		       requested_username, reason, status, created_at,
		       reviewed_by, reviewed_at, review_notes
		FROM access_requests
	`
	args := []any{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += " ORDER BY created_at"

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list access requests: %w", err)
	}
	defer rows.Close()

	var out []models.AccessRequest
	for rows.Next() {
		req, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan access request: %w", err)
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

// MarkReviewed is a conditional write on status = pending. Honors a
// transaction in context so approval can pair it with the account insert.
func (s *Postgres) MarkReviewed(ctx context.Context, id domain.RequestID, status, reviewer, notes string, at time.Time) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE access_requests
		SET status = $1, reviewed_by = $2, review_notes = $3, reviewed_at = $4
		WHERE id = $5 AND status = $6
	`, status, reviewer, notes, at, uuid.UUID(id), models.StatusPending)
	if err != nil {
		return fmt.Errorf("mark access request reviewed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM access_requests WHERE id = $1)`, uuid.UUID(id),
	).Scan(&exists); err != nil {
		return fmt.Errorf("check access request exists: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrVersionConflict
}

func scanRequest(scan func(dest ...any) error) (*models.AccessRequest, error) {
	var req models.AccessRequest
	var rawID uuid.UUID
	var reviewedBy, reviewNotes sql.NullString
	var reviewedAt sql.NullTime
	err := scan(&rawID, &req.FullName, &req.BadgeNumber, &req.Department,
		&req.PhoneExtension, &req.RequestedUsername, &req.Reason, &req.Status,
		&req.CreatedAt, &reviewedBy, &reviewedAt, &reviewNotes)
	if err != nil {
		return nil, err
	}
	req.ID = domain.RequestID(rawID)
	req.ReviewedBy = reviewedBy.String
	req.ReviewNotes = reviewNotes.String
	if reviewedAt.Valid {
		t := reviewedAt.Time
		req.ReviewedAt = &t
	}
	return &req, nil
}
