package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"campus-sso/internal/auth/models"
	"campus-sso/internal/platform/postgres"
	id "campus-sso/pkg/domain"
	"campus-sso/pkg/platform/sentinel"
)

// PostgresStore reads and writes the users table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, email, password_hash, name, roll_no, branch, semester, role, status, created_at`

func (s *PostgresStore) Save(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			name = EXCLUDED.name,
			roll_no = EXCLUDED.roll_no,
			branch = EXCLUDED.branch,
			semester = EXCLUDED.semester,
			role = EXCLUDED.role,
			status = EXCLUDED.status
	`,
		uuid.UUID(user.ID), strings.ToLower(user.Email), user.PasswordHash, user.Name,
		user.RollNo, user.Branch, user.Semester, user.Role, string(statusOrActive(user.Status)), user.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, uuid.UUID(userID))
	return scanUser(row)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		userID uuid.UUID
		status string
		user   models.User
	)
	err := row.Scan(&userID, &user.Email, &user.PasswordHash, &user.Name,
		&user.RollNo, &user.Branch, &user.Semester, &user.Role, &status, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.ID = id.UserID(userID)
	user.Status = models.UserStatus(status)
	return &user, nil
}

func statusOrActive(status models.UserStatus) models.UserStatus {
	if status == "" {
		return models.UserStatusActive
	}
	return status
}
