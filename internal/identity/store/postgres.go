package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"custodia/internal/identity/models"
	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	txcontext "custodia/pkg/platform/tx"
)

// Postgres persists accounts. Create honors a transaction in context so
// provisioning can commit or roll back together with the approval.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) conn(ctx context.Context) dbConn {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) Create(ctx context.Context, account *models.Account) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO accounts (
			id, username, full_name, badge_number, role, department,
			secret_hash, must_change_secret, active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, uuid.UUID(account.ID), account.Username, account.FullName, account.BadgeNumber,
		account.Role, account.Department, account.SecretHash, account.MustChangeSecret,
		account.Active, account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("username %s: %w", account.Username, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.AccountID) (*models.Account, error) {
	return s.findBy(ctx, "id = $1", uuid.UUID(id))
}

func (s *Postgres) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	return s.findBy(ctx, "username = $1", username)
}

func (s *Postgres) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)`, username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return exists, nil
}

func (s *Postgres) findBy(ctx context.Context, where string, arg any) (*models.Account, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, username, full_name, badge_number, role, department,
		       secret_hash, must_change_secret, active, created_at
		FROM accounts
		WHERE `+where, arg)

	var account models.Account
	var rawID uuid.UUID
	err := row.Scan(&rawID, &account.Username, &account.FullName, &account.BadgeNumber,
		&account.Role, &account.Department, &account.SecretHash,
		&account.MustChangeSecret, &account.Active, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	account.ID = domain.AccountID(rawID)
	return &account, nil
}
