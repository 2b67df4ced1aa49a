package authorizationcode

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

// PostgresStore persists authorization codes. Consume is a single
// conditional UPDATE so the database arbitrates concurrent exchanges.
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

const codeColumns = `code_hash, user_id, app_id, scopes, redirect_uri, created_at, expires_at, used, used_at`

func (s *PostgresStore) Create(ctx context.Context, authCode *models.AuthorizationCodeRecord) error {
	scopes := authCode.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO authorization_codes (`+codeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		authCode.CodeHash, uuid.UUID(authCode.UserID), uuid.UUID(authCode.ApplicationID),
		pq.Array(scopes), authCode.RedirectURI, authCode.CreatedAt, authCode.ExpiresAt,
		authCode.Used, authCode.UsedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("authorization code exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert authorization code: %w", err)
	}
	return nil
}

func (s *PostgresStore) Consume(ctx context.Context, codeHash string, appID id.ApplicationID, now time.Time) (*models.AuthorizationCodeRecord, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		UPDATE authorization_codes SET used = TRUE, used_at = $3
		WHERE code_hash = $1 AND app_id = $2 AND NOT used AND expires_at > $3
		RETURNING `+codeColumns,
		codeHash, uuid.UUID(appID), now,
	)
	record, err := scanCode(row)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}

	// The update matched nothing; load the row to report why.
	existing, err := scanCode(s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+codeColumns+` FROM authorization_codes WHERE code_hash = $1`, codeHash))
	if err != nil {
		return nil, err
	}
	if err := existing.ValidateForConsume(appID, now); err != nil {
		return nil, translateAuthCodeError(err)
	}
	return nil, fmt.Errorf("authorization code not consumable: %w", sentinel.ErrInvalidState)
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM authorization_codes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired authorization codes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired authorization codes rows: %w", err)
	}
	return int(n), nil
}

func scanCode(row *sql.Row) (*models.AuthorizationCodeRecord, error) {
	var (
		record models.AuthorizationCodeRecord
		userID uuid.UUID
		appID  uuid.UUID
		usedAt sql.NullTime
	)
	err := row.Scan(&record.CodeHash, &userID, &appID, pq.Array(&record.Scopes), &record.RedirectURI,
		&record.CreatedAt, &record.ExpiresAt, &record.Used, &usedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("authorization code not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan authorization code: %w", err)
	}
	record.UserID = id.UserID(userID)
	record.ApplicationID = id.ApplicationID(appID)
	if usedAt.Valid {
		t := usedAt.Time
		record.UsedAt = &t
	}
	return &record, nil
}
