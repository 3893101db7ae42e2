// Package repository реализует хранилище сервиса курса на PostgreSQL:
// пользователи, покупки, доступы к чату, токены сброса пароля и файлы.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/bankrot-course/internal/lib/dbx"
)

// Storage инкапсулирует пул соединений с PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New открывает пул соединений. Доступность базы проверяет WaitReady.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Storage{
		DB: db,
	}, nil
}

// WaitReady пингует базу до успеха, пока не кончатся попытки.
func (s *Storage) WaitReady(ctx context.Context, attempts int, delay time.Duration) error {
	const op = "storage.WaitReady"
	var err error
	for i := 0; i < attempts; i++ {
		if err = s.DB.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s: database not ready: %w", op, err)
}

// Ping проверяет соединение с базой.
func (s *Storage) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// WithinTx выполняет fn в одной транзакции. Методы Storage, вызванные с
// контекстом fn, работают внутри этой транзакции.
func (s *Storage) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return dbx.WithTx(ctx, s.DB, nil, func(ctx context.Context, _ dbx.DBTX) error {
		return fn(ctx)
	})
}

func (s *Storage) conn(ctx context.Context) dbx.DBTX {
	return dbx.Conn(ctx, s.DB)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
