// Package passwordreset реализует восстановление пароля по одноразовой ссылке из письма.
package passwordreset

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/magabrotheeeer/bankrot-course/internal/config"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/password"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/sl"
	"github.com/magabrotheeeer/bankrot-course/internal/models"
	"github.com/magabrotheeeer/bankrot-course/internal/storage"
)

// Сообщения ответов.
const (
	MessageRequested = "Если email существует, письмо отправлено"
	MessageChanged   = "Пароль успешно изменен"
)

var (
	ErrEmailRequired        = errors.New("Email обязателен")
	ErrTokenAndPassRequired = errors.New("Токен и пароль обязательны")
	ErrPasswordTooShort     = errors.New("Пароль должен быть не менее 6 символов")
	ErrInvalidToken         = errors.New("Неверный или использованный токен")
	ErrTokenExpired         = errors.New("Токен истек")
)

const tokenBytes = 32

// Repository хранилище пользователей и токенов сброса.
type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, userID int64, hash string) error
	CreateResetToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	GetResetTokenForUpdate(ctx context.Context, tokenHash string) (*models.ResetToken, error)
	MarkResetTokenUsed(ctx context.Context, id int64) error
}

// Mailer отправляет письмо со ссылкой на смену пароля.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, name, resetURL string, ttl time.Duration) error
}

// Service сервис восстановления пароля.
type Service struct {
	log      *slog.Logger
	repo     Repository
	mailer   Mailer
	ttl      time.Duration
	resetURL string
	now      func() time.Time
}

// New создает сервис.
func New(log *slog.Logger, repo Repository, mailer Mailer, cfg config.Reset) *Service {
	return &Service{
		log:      log,
		repo:     repo,
		mailer:   mailer,
		ttl:      cfg.TokenTTL,
		resetURL: cfg.URL,
		now:      time.Now,
	}
}

// HashToken возвращает sha256 токена в hex. В базе хранится только он.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// RequestReset создает токен и отправляет письмо. Ответ одинаков для
// существующего и неизвестного email.
func (s *Service) RequestReset(ctx context.Context, email string) (string, error) {
	const op = "services.passwordreset.RequestReset"
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrEmailRequired
	}
	log := s.log.With(slog.String("op", op))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Debug("reset requested for unknown email")
			return MessageRequested, nil
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	token, err := newToken()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.CreateResetToken(ctx, user.ID, HashToken(token), s.now().Add(s.ttl)); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	link := s.resetURL + "?token=" + url.QueryEscape(token)
	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.FullName, link, s.ttl); err != nil {
		log.Error("failed to send reset email", slog.Int64("user_id", user.ID), sl.Err(err))
		return MessageRequested, nil
	}
	log.Info("reset email sent", slog.Int64("user_id", user.ID))
	return MessageRequested, nil
}

// ConfirmReset меняет пароль по токену. Токен одноразовый.
func (s *Service) ConfirmReset(ctx context.Context, token, newPassword string) (string, error) {
	const op = "services.passwordreset.ConfirmReset"
	token = strings.TrimSpace(token)
	newPassword = strings.TrimSpace(newPassword)
	if token == "" || newPassword == "" {
		return "", ErrTokenAndPassRequired
	}
	if err := password.Validate(newPassword); err != nil {
		return "", ErrPasswordTooShort
	}

	hashed, err := password.GetHash(newPassword)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var userID int64
	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		rt, err := s.repo.GetResetTokenForUpdate(ctx, HashToken(token))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrInvalidToken
			}
			return err
		}
		if rt.Used {
			return ErrInvalidToken
		}
		if s.now().After(rt.ExpiresAt) {
			return ErrTokenExpired
		}
		if err := s.repo.UpdatePasswordHash(ctx, rt.UserID, hashed); err != nil {
			return err
		}
		userID = rt.UserID
		return s.repo.MarkResetTokenUsed(ctx, rt.ID)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenExpired) {
			return "", err
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("password changed", slog.String("op", op), slog.Int64("user_id", userID))
	return MessageChanged, nil
}
