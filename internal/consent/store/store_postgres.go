package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"campus-sso/internal/consent/models"
	id "campus-sso/pkg/domain"
	"campus-sso/pkg/platform/sentinel"
	txcontext "campus-sso/pkg/platform/tx"
)

// PostgresStore persists consent in user_consents. Inside a transaction Find
// locks the row so the read-union-write in the service is serialised.
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

func (s *PostgresStore) execer(ctx context.Context) (dbExecutor, bool) {
	if tx, ok := txcontext.From(ctx); ok {
		return tx, true
	}
	return s.db, false
}

func (s *PostgresStore) Find(ctx context.Context, userID id.UserID, appID id.ApplicationID) (*models.Record, error) {
	exec, inTx := s.execer(ctx)
	query := `SELECT scopes, revoked, granted_at FROM user_consents WHERE user_id = $1 AND app_id = $2`
	if inTx {
		query += ` FOR UPDATE`
	}

	var (
		scopes pq.StringArray
		record = &models.Record{UserID: userID, ApplicationID: appID}
	)
	err := exec.QueryRowContext(ctx, query, uuid.UUID(userID), uuid.UUID(appID)).Scan(&scopes, &record.Revoked, &record.GrantedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("consent not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find consent: %w", err)
	}
	record.Scopes = []string(scopes)
	return record, nil
}

// Save upserts the record. The conflict branch merges with the stored set so
// two first-time grants racing on the insert still end in their union.
func (s *PostgresStore) Save(ctx context.Context, record *models.Record) error {
	exec, _ := s.execer(ctx)
	scopes := record.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	_, err := exec.ExecContext(ctx, `
		INSERT INTO user_consents (user_id, app_id, scopes, revoked, granted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, app_id) DO UPDATE SET
			scopes = ARRAY(
				SELECT DISTINCT s FROM unnest(user_consents.scopes || EXCLUDED.scopes) AS s ORDER BY s
			),
			revoked = EXCLUDED.revoked,
			granted_at = EXCLUDED.granted_at
	`, uuid.UUID(record.UserID), uuid.UUID(record.ApplicationID), pq.Array(scopes), record.Revoked, record.GrantedAt)
	if err != nil {
		return fmt.Errorf("save consent: %w", err)
	}
	return nil
}

// Revoke flags the pair's consent as revoked, keeping its scopes.
func (s *PostgresStore) Revoke(ctx context.Context, userID id.UserID, appID id.ApplicationID) error {
	exec, _ := s.execer(ctx)
	res, err := exec.ExecContext(ctx, `
		UPDATE user_consents SET revoked = TRUE WHERE user_id = $1 AND app_id = $2
	`, uuid.UUID(userID), uuid.UUID(appID))
	if err != nil {
		return fmt.Errorf("revoke consent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke consent: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("consent not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Record, error) {
	exec, _ := s.execer(ctx)
	rows, err := exec.QueryContext(ctx, `
		SELECT app_id, scopes, revoked, granted_at FROM user_consents WHERE user_id = $1 ORDER BY granted_at DESC
	`, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		var (
			appID  uuid.UUID
			scopes pq.StringArray
			record = &models.Record{UserID: userID}
		)
		if err := rows.Scan(&appID, &scopes, &record.Revoked, &record.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		record.ApplicationID = id.ApplicationID(appID)
		record.Scopes = []string(scopes)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consents: %w", err)
	}
	return records, nil
}
