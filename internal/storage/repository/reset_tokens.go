package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/bankrot-course/internal/models"
	"github.com/magabrotheeeer/bankrot-course/internal/storage"
)

// CreateResetToken сохраняет хеш токена сброса пароля.
func (s *Storage) CreateResetToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	const op = "storage.CreateResetToken"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO password_reset_tokens (user_id, token_hash, expires_at) VALUES ($1, $2, $3)`,
		userID, tokenHash, expiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetResetTokenForUpdate находит токен по хешу и блокирует строку.
func (s *Storage) GetResetTokenForUpdate(ctx context.Context, tokenHash string) (*models.ResetToken, error) {
	const op = "storage.GetResetTokenForUpdate"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var t models.ResetToken
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, expires_at, used
		 FROM password_reset_tokens WHERE token_hash = $1 FOR UPDATE`, tokenHash).
		Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &t, nil
}

// MarkResetTokenUsed помечает токен использованным.
func (s *Storage) MarkResetTokenUsed(ctx context.Context, id int64) error {
	const op = "storage.MarkResetTokenUsed"

	if _, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE password_reset_tokens SET used = TRUE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
