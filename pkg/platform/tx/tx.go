// Package tx carries a SQL transaction through context so multiple stores can
// participate in one transactional boundary without knowing about each other.
package tx

import (
	"context"
	"database/sql"
	"fmt"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner runs a function inside a transactional boundary. Services depend on
// this interface so unit tests can swap the no-op in-memory runner.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner begins a database transaction, injects it into context, and
// commits or rolls back around fn. Stores that honor From(ctx) join the
// transaction automatically.
type SQLRunner struct {
	db *sql.DB
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := From(ctx); ok {
		// Already inside a transaction; join it.
		return fn(ctx)
	}
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// NoopRunner satisfies Runner for in-memory stores, which take their own locks.
type NoopRunner struct{}

func (NoopRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
