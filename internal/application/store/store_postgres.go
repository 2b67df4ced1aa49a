package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"campus-sso/internal/application/models"
	"campus-sso/internal/platform/postgres"
	id "campus-sso/pkg/domain"
	"campus-sso/pkg/platform/sentinel"
	txcontext "campus-sso/pkg/platform/tx"
)

// PostgresStore persists applications and access rows in PostgreSQL.
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

const applicationColumns = `id, client_id, name, base_url, redirect_targets,
	COALESCE(client_secret_hash, ''), response_type, blocked, created_at, secret_rotated_at`

func (s *PostgresStore) Create(ctx context.Context, app *models.Application) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO applications (id, client_id, name, base_url, redirect_targets,
			client_secret_hash, response_type, blocked, created_at, secret_rotated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)
	`,
		uuid.UUID(app.ID), app.ClientID, app.Name, app.BaseURL, pq.Array(nonNil(app.RedirectTargets)),
		app.ClientSecretHash, app.DefaultResponseType, app.Blocked, app.CreatedAt, app.SecretRotatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("client_id %q already registered: %w", app.ClientID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, uuid.UUID(appID))
	return scanApplication(row)
}

func (s *PostgresStore) FindByClientID(ctx context.Context, clientID string) (*models.Application, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE client_id = $1`, clientID)
	return scanApplication(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Application, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+applicationColumns+` FROM applications ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return apps, nil
}

func (s *PostgresStore) Update(ctx context.Context, app *models.Application) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE applications
		SET client_id = $2, name = $3, base_url = $4, redirect_targets = $5,
			client_secret_hash = NULLIF($6, ''), response_type = $7, blocked = $8, secret_rotated_at = $9
		WHERE id = $1
	`,
		uuid.UUID(app.ID), app.ClientID, app.Name, app.BaseURL, pq.Array(nonNil(app.RedirectTargets)),
		app.ClientSecretHash, app.DefaultResponseType, app.Blocked, app.SecretRotatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("client_id %q already registered: %w", app.ClientID, sentinel.ErrConflict)
		}
		return fmt.Errorf("update application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update application rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("application not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) EnsureAccess(ctx context.Context, userID id.UserID, appID id.ApplicationID, now time.Time) (*models.Access, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO application_access (user_id, app_id, blocked, first_accessed_at)
		VALUES ($1, $2, FALSE, $3)
		ON CONFLICT (user_id, app_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING blocked, first_accessed_at
	`, uuid.UUID(userID), uuid.UUID(appID), now)

	access := &models.Access{UserID: userID, ApplicationID: appID}
	if err := row.Scan(&access.Blocked, &access.FirstAccessedAt); err != nil {
		return nil, fmt.Errorf("ensure application access: %w", err)
	}
	return access, nil
}

func (s *PostgresStore) FindAccess(ctx context.Context, userID id.UserID, appID id.ApplicationID) (*models.Access, error) {
	access := &models.Access{UserID: userID, ApplicationID: appID}
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT blocked, first_accessed_at FROM application_access
		WHERE user_id = $1 AND app_id = $2
	`, uuid.UUID(userID), uuid.UUID(appID)).Scan(&access.Blocked, &access.FirstAccessedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("access not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find application access: %w", err)
	}
	return access, nil
}

func (s *PostgresStore) SetAccessBlocked(ctx context.Context, userID id.UserID, appID id.ApplicationID, blocked bool, now time.Time) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO application_access (user_id, app_id, blocked, first_accessed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, app_id) DO UPDATE SET blocked = EXCLUDED.blocked
	`, uuid.UUID(userID), uuid.UUID(appID), blocked, now)
	if err != nil {
		return fmt.Errorf("set application access: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		appID     uuid.UUID
		targets   pq.StringArray
		rotatedAt sql.NullTime
		app       models.Application
	)
	err := row.Scan(&appID, &app.ClientID, &app.Name, &app.BaseURL, &targets,
		&app.ClientSecretHash, &app.DefaultResponseType, &app.Blocked, &app.CreatedAt, &rotatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("application not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan application: %w", err)
	}
	app.ID = id.ApplicationID(appID)
	app.RedirectTargets = []string(targets)
	if rotatedAt.Valid {
		at := rotatedAt.Time
		app.SecretRotatedAt = &at
	}
	return &app, nil
}

// nonNil keeps pq.Array from writing NULL into NOT NULL array columns.
func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
