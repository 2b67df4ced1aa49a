//go:build integration

package containers

import (
	"context"
	"database/sql"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers Postgres instance with the schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// migrationsDir resolves the repository's migrations directory from this file.
func migrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")
}

// NewPostgresContainer starts Postgres and runs migrations/001_init.sql.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("sso"),
		tcpostgres.WithUsername("sso"),
		tcpostgres.WithPassword("sso"),
		tcpostgres.WithInitScripts(filepath.Join(migrationsDir(), "001_init.sql")),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("failed to open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("failed to ping postgres: %v", err)
	}

	return &PostgresContainer{Container: container, DSN: dsn, DB: db}
}

// Truncate empties the given tables between tests.
func (p *PostgresContainer) Truncate(t *testing.T, tables ...string) {
	t.Helper()
	for _, table := range tables {
		if _, err := p.DB.Exec("TRUNCATE TABLE " + table + " CASCADE"); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
}

// SeedUserAndApplication inserts a minimal user and application so rows with
// foreign keys to both can be written.
func (p *PostgresContainer) SeedUserAndApplication(t *testing.T) (userID, appID uuid.UUID) {
	t.Helper()
	userID, appID = uuid.New(), uuid.New()
	if _, err := p.DB.Exec(`INSERT INTO users (id, email, password_hash, name) VALUES ($1, $2, 'x', 'Fixture')`,
		userID, userID.String()+"@campus.test"); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := p.DB.Exec(`INSERT INTO applications (id, client_id, name, redirect_targets) VALUES ($1, $2, 'Fixture', '{https://rp.test/cb}')`,
		appID, "client-"+appID.String()); err != nil {
		t.Fatalf("seed application: %v", err)
	}
	return userID, appID
}
