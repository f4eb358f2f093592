package audit

import (
	"context"
	"time"
)

// Store persists timeline events. The postgres implementation writes to the
// outbox table; the relay ships outbox rows to Kafka afterwards.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher captures structured timeline events. It is append-only and uses
// the storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.store.Append(ctx, event)
}
