// Package password хеширует и проверяет пароли пользователей курса.
package password

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MinLength минимальная длина нового пароля.
const MinLength = 6

var (
	// ErrMismatch пароль не совпадает с хешем.
	ErrMismatch = errors.New("password mismatch")
	// ErrTooShort пароль короче MinLength.
	ErrTooShort = errors.New("password is too short")
)

// GetHash возвращает bcrypt-хеш пароля.
func GetHash(password string) (string, error) {
	const op = "password.GetHash"
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashedPassword), nil
}

// CompareHash сравнивает bcrypt-хеш с введённым паролем.
// Несовпадение возвращается как ErrMismatch.
func CompareHash(originalHash, externalPassword string) error {
	const op = "password.CompareHash"
	err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(externalPassword))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return fmt.Errorf("%s: %w", op, ErrMismatch)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Validate проверяет требования к новому паролю.
func Validate(password string) error {
	if len([]rune(password)) < MinLength {
		return ErrTooShort
	}
	return nil
}

// Temporary генерирует временный пароль из 8 символов для повторной выдачи доступа.
func Temporary() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
