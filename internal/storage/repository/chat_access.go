package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/bankrot-course/internal/models"
)

const chatAccessColumns = `id, client_name, COALESCE(telegram_username, ''), is_active, access_start, access_end`

func scanChatAccess(row interface{ Scan(...any) error }) (models.ChatAccess, error) {
	var a models.ChatAccess
	err := row.Scan(&a.ID, &a.ClientName, &a.TelegramUsername, &a.IsActive, &a.AccessStart, &a.AccessEnd)
	return a, err
}

func collectChatAccess(rows *sql.Rows) ([]models.ChatAccess, error) {
	defer rows.Close()
	res := make([]models.ChatAccess, 0)
	for rows.Next() {
		a, err := scanChatAccess(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// CreateChatAccess добавляет окно доступа к чату.
func (s *Storage) CreateChatAccess(ctx context.Context, a models.ChatAccess) (*models.ChatAccess, error) {
	const op = "storage.CreateChatAccess"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var telegram *string
	if a.TelegramUsername != "" {
		telegram = &a.TelegramUsername
	}
	query := `INSERT INTO chat_access (client_name, telegram_username, is_active, access_start, access_end)
			  VALUES ($1, $2, TRUE, $3, $4)
			  RETURNING ` + chatAccessColumns
	created, err := scanChatAccess(s.conn(ctx).QueryRowContext(ctx, query,
		a.ClientName, telegram, a.AccessStart, a.AccessEnd))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &created, nil
}

// ListChatAccess возвращает доступы, отсортированные по дате окончания.
func (s *Storage) ListChatAccess(ctx context.Context, activeOnly bool) ([]models.ChatAccess, error) {
	const op = "storage.ListChatAccess"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + chatAccessColumns + ` FROM chat_access`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY access_end, id`

	rows, err := s.conn(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res, err := collectChatAccess(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// DeactivateExpired одним запросом выключает все активные доступы с
// access_end <= now и возвращает выключенные записи. Параллельные вызовы
// не вернут одну запись дважды.
func (s *Storage) DeactivateExpired(ctx context.Context, now time.Time) ([]models.ChatAccess, error) {
	const op = "storage.DeactivateExpired"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE chat_access
			  SET is_active = FALSE, updated_at = NOW()
			  WHERE is_active AND access_end <= $1
			  RETURNING ` + chatAccessColumns
	rows, err := s.conn(ctx).QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res, err := collectChatAccess(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// FindExpiringBetween возвращает активные доступы с telegram username,
// у которых access_end попадает в [from, to).
func (s *Storage) FindExpiringBetween(ctx context.Context, from, to time.Time) ([]models.ChatAccess, error) {
	const op = "storage.FindExpiringBetween"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + chatAccessColumns + ` FROM chat_access
			  WHERE is_active
				AND access_end >= $1 AND access_end < $2
				AND telegram_username IS NOT NULL AND telegram_username <> ''
			  ORDER BY access_end, id`
	rows, err := s.conn(ctx).QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res, err := collectChatAccess(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}
