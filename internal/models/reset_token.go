package models

import "time"

// ResetToken одноразовый токен сброса пароля. Хранится только хеш токена.
type ResetToken struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	Used      bool
}
