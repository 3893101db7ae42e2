package repository

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/bankrot-course/internal/migrations"
	"github.com/magabrotheeeer/bankrot-course/internal/models"
)

// TestDataFactory создает тестовые данные напрямую в БД.
type TestDataFactory struct {
	storage *Storage
}

func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает пользователя и возвращает его id.
func (f *TestDataFactory) CreateUser(t *testing.T, email, fullName string) int64 {
	t.Helper()
	var id int64
	err := f.storage.DB.QueryRow(`INSERT INTO users (email, password_hash, full_name)
		VALUES ($1, 'hashedpassword', $2) RETURNING id`, email, fullName).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateCompletedPurchase создает подтвержденную покупку.
func (f *TestDataFactory) CreateCompletedPurchase(t *testing.T, userID int64, paymentID string, expiresAt time.Time) int64 {
	t.Helper()
	var id int64
	err := f.storage.DB.QueryRow(`INSERT INTO user_purchases
		(user_id, amount, payment_status, payment_id, product_type, expires_at)
		VALUES ($1, 2999, 'completed', $2, 'course', $3) RETURNING id`,
		userID, paymentID, expiresAt).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateChatAccess создает доступ к чату.
func (f *TestDataFactory) CreateChatAccess(t *testing.T, name, telegram string, active bool, end time.Time) int64 {
	t.Helper()
	var tg *string
	if telegram != "" {
		tg = &telegram
	}
	var id int64
	err := f.storage.DB.QueryRow(`INSERT INTO chat_access
		(client_name, telegram_username, is_active, access_start, access_end)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		name, tg, active, end.Add(-30*24*time.Hour), end).Scan(&id)
	require.NoError(t, err)
	return id
}

func (f *TestDataFactory) chatAccessActive(t *testing.T, id int64) bool {
	t.Helper()
	var active bool
	require.NoError(t, f.storage.DB.QueryRow(`SELECT is_active FROM chat_access WHERE id = $1`, id).Scan(&active))
	return active
}

func (f *TestDataFactory) purchase(t *testing.T, paymentID string) models.Purchase {
	t.Helper()
	p, err := f.storage.GetPurchaseByPaymentID(context.Background(), paymentID)
	require.NoError(t, err)
	return *p
}

func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")
}

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(connStr)
	require.NoError(t, err)
	require.NoError(t, storage.WaitReady(ctx, 10, time.Second))

	_, err = migrations.Run(storage.DB, migrationsDir(t))
	require.NoError(t, err, "failed to apply migrations")

	cleanup := func() {
		_ = storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}
