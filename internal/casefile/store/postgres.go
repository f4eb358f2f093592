package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"custodia/internal/casefile/models"
	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

// Postgres persists cases. Pure I/O; numbering rules live in the service.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, c *models.Case) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cases (id, case_number, case_name, department, status, opened_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(c.ID), c.Number, c.Name, c.Department, c.Status, c.OpenedAt, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("case number %s: %w", c.Number, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create case: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.CaseID) (*models.Case, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, case_number, case_name, department, status, opened_at, created_at
		FROM cases
		WHERE id = $1
	`, uuid.UUID(id))

	var c models.Case
	var rawID uuid.UUID
	if err := row.Scan(&rawID, &c.Number, &c.Name, &c.Department, &c.Status, &c.OpenedAt, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find case: %w", err)
	}
	c.ID = domain.CaseID(rawID)
	return &c, nil
}

func (s *Postgres) NextSequence(ctx context.Context, yearPrefix string) (int, error) {
	var next int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(split_part(case_number, '-', 2)::int), 0) + 1
		FROM cases
		WHERE case_number LIKE $1 || '-%'
	`, yearPrefix).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next case sequence: %w", err)
	}
	return next, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
