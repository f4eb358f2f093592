// Package relay ships timeline outbox rows to Kafka. The ledger and admission
// writes never wait on Kafka: they commit to the outbox and the relay catches
// up in the background.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	auditpg "custodia/internal/audit/store/postgres"
	"custodia/internal/platform/config"
)

const (
	defaultBatchSize = 100
	defaultInterval  = 2 * time.Second
)

// Outbox is the drainable side of the timeline outbox store.
type Outbox interface {
	NextBatch(ctx context.Context, limit int) ([]auditpg.OutboxRow, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, publishedAt time.Time) error
}

// Relay polls the outbox and publishes rows to a Kafka topic.
type Relay struct {
	outbox   Outbox
	client   *kgo.Client
	topic    string
	logger   *slog.Logger
	interval time.Duration
}

// New builds a relay, or returns nil when Kafka is not configured. A nil relay
// means events stay in the outbox; the ledger stays durable either way.
func New(cfg config.KafkaConfig, outbox Outbox, logger *slog.Logger) (*Relay, error) {
	if len(cfg.Brokers) == 0 || outbox == nil {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
	)
	if err != nil {
		return nil, err
	}
	return &Relay{
		outbox:   outbox,
		client:   client,
		topic:    cfg.Topic,
		logger:   logger,
		interval: defaultInterval,
	}, nil
}

// Run drains the outbox until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer r.client.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drain(ctx); err != nil {
				// Publishing is best-effort; rows stay unpublished and the
				// next tick retries.
				r.logger.WarnContext(ctx, "timeline relay drain failed", "error", err)
			}
		}
	}
}

func (r *Relay) drain(ctx context.Context) error {
	for {
		batch, err := r.outbox.NextBatch(ctx, defaultBatchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		records := make([]*kgo.Record, len(batch))
		ids := make([]uuid.UUID, len(batch))
		for i, row := range batch {
			records[i] = &kgo.Record{
				Topic: r.topic,
				Key:   []byte(row.Action),
				Value: row.Payload,
			}
			ids[i] = row.ID
		}

		if err := r.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
			return err
		}
		if err := r.outbox.MarkPublished(ctx, ids, time.Now()); err != nil {
			return err
		}
		if len(batch) < defaultBatchSize {
			return nil
		}
	}
}
