package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"campus-sso/internal/credential/models"
	"campus-sso/internal/platform/postgres"
	id "campus-sso/pkg/domain"
	"campus-sso/pkg/platform/sentinel"
	txcontext "campus-sso/pkg/platform/tx"
)

// PostgresStore persists API keys. Methods join a transaction carried on the
// context; RotateForOwner opens its own when none is present.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const keyColumns = `id, name, lookup, key_hash, user_id, app_id, revoked, created_at, last_used_at, revoked_at`

func (s *PostgresStore) Create(ctx context.Context, key *models.APIKey) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO api_keys (`+keyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		uuid.UUID(key.ID), key.Name, key.Lookup, key.KeyHash,
		nullableUUID(uuid.UUID(key.UserID)), nullableUUID(uuid.UUID(key.ApplicationID)),
		key.Revoked, key.CreatedAt, key.LastUsedAt, key.RevokedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("api key lookup collision: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, keyID id.APIKeyID) (*models.APIKey, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+keyColumns+` FROM api_keys WHERE id = $1`, uuid.UUID(keyID))
	return scanKey(row)
}

func (s *PostgresStore) FindByLookup(ctx context.Context, lookup string) (*models.APIKey, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+keyColumns+` FROM api_keys WHERE lookup = $1`, lookup)
	return scanKey(row)
}

func (s *PostgresStore) ListActive(ctx context.Context, owner models.Owner) ([]*models.APIKey, error) {
	where, args := ownerPredicate(owner)
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+keyColumns+` FROM api_keys WHERE NOT revoked AND `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}
	return keys, nil
}

func (s *PostgresStore) Revoke(ctx context.Context, keyID id.APIKeyID, now time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE api_keys SET revoked = TRUE, revoked_at = COALESCE(revoked_at, $2)
		WHERE id = $1
	`, uuid.UUID(keyID), now)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke api key rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("api key not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) RevokeAll(ctx context.Context, owner models.Owner, now time.Time) (int, error) {
	where, args := ownerPredicate(owner)
	args = append(args, now)
	res, err := s.execer(ctx).ExecContext(ctx, fmt.Sprintf(`
		UPDATE api_keys SET revoked = TRUE, revoked_at = $%d
		WHERE NOT revoked AND %s
	`, len(args), where), args...)
	if err != nil {
		return 0, fmt.Errorf("revoke api keys: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke api keys rows: %w", err)
	}
	return int(affected), nil
}

// RotateForOwner revokes the owner's active keys and inserts next in one transaction.
func (s *PostgresStore) RotateForOwner(ctx context.Context, owner models.Owner, next *models.APIKey, now time.Time) (int, error) {
	if _, ok := txcontext.From(ctx); ok {
		return s.rotate(ctx, owner, next, now)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin rotation: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	revoked, err := s.rotate(txcontext.WithTx(ctx, sqlTx), owner, next, now)
	if err != nil {
		return 0, err
	}
	if err := sqlTx.Commit(); err != nil {
		return 0, fmt.Errorf("commit rotation: %w", err)
	}
	return revoked, nil
}

func (s *PostgresStore) rotate(ctx context.Context, owner models.Owner, next *models.APIKey, now time.Time) (int, error) {
	revoked, err := s.RevokeAll(ctx, owner, now)
	if err != nil {
		return 0, err
	}
	if err := s.Create(ctx, next); err != nil {
		return 0, err
	}
	return revoked, nil
}

func (s *PostgresStore) TouchLastUsed(ctx context.Context, keyID id.APIKeyID, now time.Time) error {
	_, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, uuid.UUID(keyID), now)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

func ownerPredicate(owner models.Owner) (string, []any) {
	if owner.IsApplication() {
		return "user_id IS NULL AND app_id = $1", []any{uuid.UUID(owner.ApplicationID)}
	}
	return "user_id = $1", []any{uuid.UUID(owner.UserID)}
}

func nullableUUID(u uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: u, Valid: u != uuid.Nil}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKey(row rowScanner) (*models.APIKey, error) {
	var (
		keyID     uuid.UUID
		userID    uuid.NullUUID
		appID     uuid.NullUUID
		lastUsed  sql.NullTime
		revokedAt sql.NullTime
		key       models.APIKey
	)
	err := row.Scan(&keyID, &key.Name, &key.Lookup, &key.KeyHash, &userID, &appID,
		&key.Revoked, &key.CreatedAt, &lastUsed, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("api key not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan api key: %w", err)
	}
	key.ID = id.APIKeyID(keyID)
	if userID.Valid {
		key.UserID = id.UserID(userID.UUID)
	}
	if appID.Valid {
		key.ApplicationID = id.ApplicationID(appID.UUID)
	}
	if lastUsed.Valid {
		at := lastUsed.Time
		key.LastUsedAt = &at
	}
	if revokedAt.Valid {
		at := revokedAt.Time
		key.RevokedAt = &at
	}
	return &key, nil
}
