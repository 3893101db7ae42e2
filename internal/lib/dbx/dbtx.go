// Package dbx содержит общие для репозиториев абстракции над database/sql:
// интерфейс DBTX, который реализуют *sql.DB и *sql.Tx, и выполнение функций
// в транзакции с передачей транзакции через context.
package dbx

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX подмножество database/sql, которое используют репозитории.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// WithTx открывает транзакцию, выполняет fn и фиксирует её при успехе.
// При ошибке или панике транзакция откатывается, паника пробрасывается дальше.
// Контекст, переданный в fn, несет транзакцию, поэтому Conn(ctx, db) внутри fn
// вернет *sql.Tx. Вложенный вызов переиспользует уже открытую транзакцию.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx, tx)
	}

	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("dbx.WithTx: begin: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("dbx.WithTx: commit: %w", cerr)
		}
	}()

	err = fn(context.WithValue(ctx, txKey{}, tx), tx)
	return err
}

// Conn возвращает транзакцию из ctx, если она есть, иначе db.
func Conn(ctx context.Context, db *sql.DB) DBTX {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

// InTx сообщает, выполняется ли ctx внутри WithTx.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sql.Tx)
	return ok
}
