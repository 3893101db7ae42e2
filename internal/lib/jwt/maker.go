// Package jwt выпускает и проверяет подписанные HS256 токены пользователей курса.
//
// В токене хранятся id, email, полное имя и признак администратора.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired возвращается для токена с истекшим exp.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidToken возвращается для любого другого неверного токена.
	ErrInvalidToken = errors.New("invalid token")
)

// Subject данные пользователя, которые попадают в токен.
type Subject struct {
	UserID   int64
	Email    string
	FullName string
	IsAdmin  bool
}

// CustomClaims описывает пользовательские данные, хранящиеся в JWT.
type CustomClaims struct {
	UserID   int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Maker описывает генерацию и разбор токенов.
type Maker interface {
	GenerateToken(sub Subject) (string, error)
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует Maker на секретном ключе и времени жизни токена.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
	now       func() time.Time
}

// NewJWTMaker создаёт MakerImpl.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
		now:       time.Now,
	}
}

// GenerateToken создает токен для sub со сроком жизни tokenTTL.
func (j *MakerImpl) GenerateToken(sub Subject) (string, error) {
	const op = "jwt.GenerateToken"
	if j.secretKey == "" {
		return "", fmt.Errorf("%s: secret key is not configured", op)
	}
	now := j.now()
	claims := CustomClaims{
		UserID:   sub.UserID,
		Email:    sub.Email,
		FullName: sub.FullName,
		IsAdmin:  sub.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// ParseToken проверяет подпись и срок действия токена.
// Ошибки сводятся к ErrTokenExpired или ErrInvalidToken.
func (j *MakerImpl) ParseToken(tokenStr string) (*CustomClaims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	return claims, nil
}
