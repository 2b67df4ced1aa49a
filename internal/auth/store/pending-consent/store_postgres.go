package pendingconsent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"campus-sso/internal/auth/models"
	"campus-sso/internal/platform/postgres"
	id "campus-sso/pkg/domain"
	"campus-sso/pkg/platform/sentinel"
	txcontext "campus-sso/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const pendingColumns = `token_hash, user_id, app_id, redirect_uri, scopes, response_type, state, created_at, expires_at`

func (s *PostgresStore) Create(ctx context.Context, pending *models.PendingConsent) error {
	scopes := pending.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO pending_consents (`+pendingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		pending.TokenHash, uuid.UUID(pending.UserID), uuid.UUID(pending.ApplicationID),
		pending.RedirectURI, pq.Array(scopes), string(pending.ResponseType), pending.State,
		pending.CreatedAt, pending.ExpiresAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("pending consent exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert pending consent: %w", err)
	}
	return nil
}

func (s *PostgresStore) Consume(ctx context.Context, tokenHash string, now time.Time) (*models.PendingConsent, error) {
	var (
		record       models.PendingConsent
		userID       uuid.UUID
		appID        uuid.UUID
		responseType string
	)
	err := s.execer(ctx).QueryRowContext(ctx,
		`DELETE FROM pending_consents WHERE token_hash = $1 RETURNING `+pendingColumns, tokenHash,
	).Scan(&record.TokenHash, &userID, &appID, &record.RedirectURI, pq.Array(&record.Scopes),
		&responseType, &record.State, &record.CreatedAt, &record.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("pending consent not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("consume pending consent: %w", err)
	}
	record.UserID = id.UserID(userID)
	record.ApplicationID = id.ApplicationID(appID)
	record.ResponseType = models.ParseResponseType(responseType, models.ResponseTypeToken)

	if record.IsExpired(now) {
		return &record, fmt.Errorf("pending consent expired: %w", sentinel.ErrExpired)
	}
	return &record, nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM pending_consents WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired pending consents: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired pending consents rows: %w", err)
	}
	return int(n), nil
}
