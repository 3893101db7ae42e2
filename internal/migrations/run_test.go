package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func getTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return db, cleanup
}

func getMigrationsPath(t *testing.T) string {
	projectRoot, err := filepath.Abs("../..")
	require.NoError(t, err)
	return filepath.Join(projectRoot, "migrations")
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)`, name).Scan(&exists)
	require.NoError(t, err)
	return exists
}

func TestRunMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	db, cleanup := getTestDB(t)
	defer cleanup()

	version, err := Run(db, getMigrationsPath(t))
	require.NoError(t, err)
	require.Equal(t, uint(4), version)

	for _, table := range []string{"users", "user_purchases", "chat_access", "password_reset_tokens", "course_files"} {
		require.True(t, tableExists(t, db, table), "table %s should exist", table)
	}

	var exists bool
	err = db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE schemaname = 'public'
			AND tablename = 'chat_access'
			AND indexname = 'idx_chat_access_active_end'
		)`).Scan(&exists)
	require.NoError(t, err)
	require.True(t, exists, "partial index on chat_access should exist")
}

func TestMigrationIdempotency(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	db, cleanup := getTestDB(t)
	defer cleanup()

	path := getMigrationsPath(t)

	first, err := Run(db, path)
	require.NoError(t, err)

	second, err := Run(db, path)
	require.NoError(t, err, "running migrations twice should not fail")
	require.Equal(t, first, second)
}

func TestRunMigrations_BadPath(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	db, cleanup := getTestDB(t)
	defer cleanup()

	_, err := Run(db, filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}
