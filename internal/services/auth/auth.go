// Package auth отвечает за регистрацию, вход и проверку токенов пользователей курса.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/bankrot-course/internal/lib/jwt"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/password"
	"github.com/magabrotheeeer/bankrot-course/internal/models"
	"github.com/magabrotheeeer/bankrot-course/internal/storage"
)

var (
	ErrMissingFields      = errors.New("Email, password and full_name are required")
	ErrUserExists         = errors.New("User with this email already exists")
	ErrLoginFields        = errors.New("Email and password are required")
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrNoToken            = errors.New("No token provided")
	ErrTokenExpired       = errors.New("Token expired")
	ErrInvalidToken       = errors.New("Invalid token")
	ErrEmailRequired      = errors.New("Email is required")
	ErrUserNotFound       = errors.New("User not found")
)

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// CreateUser сохраняет нового пользователя, дубликат email дает storage.ErrAlreadyExists.
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, userID int64, hash string) error
}

// CredentialsSender отправляет пользователю письмо с данными для входа.
type CredentialsSender interface {
	SendCredentials(ctx context.Context, to, name, password, loginURL string) error
}

// Session токен и пользователь, возвращаемые после входа или регистрации.
type Session struct {
	Token string            `json:"token"`
	User  models.PublicUser `json:"user"`
}

// AuthService отвечает за регистрацию, авторизацию и валидацию JWT.
type AuthService struct {
	log      *slog.Logger
	users    UserRepository
	jwtMaker jwt.Maker
	sender   CredentialsSender
	loginURL string
}

// NewAuthService создает новый экземпляр AuthService. sender может быть nil,
// тогда ResendCredentials недоступен.
func NewAuthService(log *slog.Logger, users UserRepository, jwtMaker jwt.Maker, sender CredentialsSender, loginURL string) *AuthService {
	return &AuthService{
		log:      log,
		users:    users,
		jwtMaker: jwtMaker,
		sender:   sender,
		loginURL: loginURL,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register создает пользователя и сразу выдает токен.
func (s *AuthService) Register(ctx context.Context, email, rawPassword, fullName, telegramUsername string) (*Session, error) {
	const op = "services.auth.Register"
	email = normalizeEmail(email)
	fullName = strings.TrimSpace(fullName)
	if email == "" || rawPassword == "" || fullName == "" {
		return nil, ErrMissingFields
	}

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user := models.User{
		Email:        email,
		PasswordHash: hashed,
		FullName:     fullName,
	}
	if tg := strings.TrimSpace(telegramUsername); tg != "" {
		user.TelegramUsername = &tg
	}

	created, err := s.users.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user registered", slog.String("op", op), slog.Int64("user_id", created.ID))
	return s.session(created)
}

// Login проверяет пароль пользователя и выдает токен. Неизвестный email и
// неверный пароль неразличимы для клиента.
func (s *AuthService) Login(ctx context.Context, email, rawPassword string) (*Session, error) {
	const op = "services.auth.Login"
	email = normalizeEmail(email)
	if email == "" || rawPassword == "" {
		return nil, ErrLoginFields
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.session(user)
}

func (s *AuthService) session(user *models.User) (*Session, error) {
	const op = "services.auth.session"
	token, err := s.jwtMaker.GenerateToken(jwt.Subject{
		UserID:   user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		IsAdmin:  user.IsAdmin,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Session{Token: token, User: user.Public()}, nil
}

// ValidateToken проверяет JWT и возвращает его claims.
func (s *AuthService) ValidateToken(_ context.Context, token string) (*jwt.CustomClaims, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ResendCredentials выдает пользователю временный пароль и отправляет его письмом.
func (s *AuthService) ResendCredentials(ctx context.Context, email string) error {
	const op = "services.auth.ResendCredentials"
	email = normalizeEmail(email)
	if email == "" {
		return ErrEmailRequired
	}
	if s.sender == nil {
		return fmt.Errorf("%s: credentials sender is not configured", op)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	temp := password.Temporary()
	hashed, err := password.GetHash(temp)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hashed); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.sender.SendCredentials(ctx, user.Email, user.FullName, temp, s.loginURL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("credentials resent", slog.String("op", op), slog.Int64("user_id", user.ID))
	return nil
}
