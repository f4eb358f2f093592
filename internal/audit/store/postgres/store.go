package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"custodia/internal/audit"
	txcontext "custodia/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern. Events
// land in the outbox table; the relay publishes them to Kafka and marks them.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// payload is the JSON structure published to Kafka.
type payload struct {
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	Action     string `json:"action"`
	Actor      string `json:"actor,omitempty"`
	CaseID     string `json:"case_id,omitempty"`
	EvidenceID string `json:"evidence_id,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Detail     string `json:"detail,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// Append writes a timeline event to the outbox table. Joins the transaction
// in context when one is present.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()
	body, err := json.Marshal(payload{
		ID:         eventID.String(),
		Timestamp:  event.Timestamp.Format(time.RFC3339Nano),
		Action:     event.Action,
		Actor:      event.Actor,
		CaseID:     event.CaseID,
		EvidenceID: event.EvidenceID,
		Subject:    event.Subject,
		Detail:     event.Detail,
		RequestID:  event.RequestID,
	})
	if err != nil {
		return fmt.Errorf("marshal timeline payload: %w", err)
	}

	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO timeline_outbox (id, occurred_at, action, payload)
		VALUES ($1, $2, $3, $4)
	`, eventID, event.Timestamp, event.Action, body)
	if err != nil {
		return fmt.Errorf("append timeline outbox: %w", err)
	}
	return nil
}

// OutboxRow is one unpublished event handed to the relay.
type OutboxRow struct {
	ID      uuid.UUID
	Action  string
	Payload []byte
}

// NextBatch returns up to limit unpublished rows in append order. Delivery is
// at-least-once: a crash between publish and MarkPublished re-sends the batch.
func (s *Store) NextBatch(ctx context.Context, limit int) ([]OutboxRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, payload
		FROM timeline_outbox
		WHERE published_at IS NULL
		ORDER BY occurred_at, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("next outbox batch: %w", err)
	}
	defer rows.Close()

	var batch []OutboxRow
	for rows.Next() {
		var row OutboxRow
		if err := rows.Scan(&row.ID, &row.Action, &row.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		batch = append(batch, row)
	}
	return batch, rows.Err()
}

// MarkPublished stamps rows as shipped. Rows stay in the table for operator
// inspection; a retention job can prune them later.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, publishedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	uuids := make([]string, len(ids))
	for i, id := range ids {
		uuids[i] = id.String()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE timeline_outbox
		SET published_at = $1
		WHERE id = ANY($2)
	`, publishedAt, uuids)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
