package refreshtoken

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

// PostgresStore persists refresh token fingerprints. Consume is a
// DELETE ... RETURNING, so a token can be redeemed at most once.
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

const tokenColumns = `token_hash, user_id, audience, scopes, created_at, expires_at, revoked`

func (s *PostgresStore) Create(ctx context.Context, token *models.RefreshTokenRecord) error {
	scopes := token.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO refresh_tokens (`+tokenColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		token.TokenHash, uuid.UUID(token.UserID), token.Audience, pq.Array(scopes),
		token.CreatedAt, token.ExpiresAt, token.Revoked,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("refresh token exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (s *PostgresStore) Consume(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshTokenRecord, error) {
	var (
		record models.RefreshTokenRecord
		userID uuid.UUID
	)
	err := s.execer(ctx).QueryRowContext(ctx,
		`DELETE FROM refresh_tokens WHERE token_hash = $1 RETURNING `+tokenColumns, tokenHash,
	).Scan(&record.TokenHash, &userID, &record.Audience, pq.Array(&record.Scopes),
		&record.CreatedAt, &record.ExpiresAt, &record.Revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}
	record.UserID = id.UserID(userID)

	if err := record.ValidateForConsume(now); err != nil {
		return nil, translateRefreshTokenError(err)
	}
	return &record, nil
}

func (s *PostgresStore) RevokeAllForUser(ctx context.Context, userID id.UserID) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND NOT revoked`, uuid.UUID(userID))
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens rows: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE revoked OR expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens rows: %w", err)
	}
	return int(n), nil
}
