// Package outbox moves audit events from the Postgres outbox to Kafka.
package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditpg "campus-sso/pkg/platform/audit/store/postgres"
)

// Publisher ships one outbox payload.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

type Relay struct {
	db        *sql.DB
	store     *auditpg.Store
	publisher Publisher
	logger    *slog.Logger
	batchSize int
	interval  time.Duration
	retention time.Duration
}

type Option func(*Relay)

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithRetention sets how long published rows are kept before being trimmed.
func WithRetention(d time.Duration) Option {
	return func(r *Relay) {
		r.retention = d
	}
}

func NewRelay(db *sql.DB, store *auditpg.Store, publisher Publisher, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		db:        db,
		store:     store,
		publisher: publisher,
		logger:    logger,
		batchSize: 100,
		interval:  2 * time.Second,
		retention: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls the outbox until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		for {
			n, err := r.RunOnce(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				r.logger.ErrorContext(ctx, "audit outbox relay failed", "error", err)
				break
			}
			if n < r.batchSize {
				break
			}
		}
		if r.retention > 0 {
			if _, err := r.store.DeletePublishedBefore(ctx, time.Now().Add(-r.retention)); err != nil && ctx.Err() == nil {
				r.logger.WarnContext(ctx, "audit outbox trim failed", "error", err)
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce ships a single batch. Rows are only marked published once Kafka
// acknowledged them; a failure leaves the whole batch for the next attempt.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	entries, err := r.store.ClaimBatch(ctx, tx, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	published := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		if err := r.publisher.Publish(ctx, e.Key, e.Raw); err != nil {
			return 0, fmt.Errorf("publish outbox entry %s: %w", e.ID, err)
		}
		published = append(published, e.ID)
	}
	if err := r.store.MarkPublished(ctx, tx, published, time.Now()); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit outbox tx: %w", err)
	}
	return len(published), nil
}
