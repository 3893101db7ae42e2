// Package models содержит доменные структуры сервиса курса: пользователей,
// покупки, доступы к чату, токены сброса пароля, файлы и уведомления.
package models

import "time"

// User зарегистрированный пользователь курса.
type User struct {
	ID               int64
	Email            string
	PasswordHash     string
	FullName         string
	TelegramUsername *string
	IsAdmin          bool
	CreatedAt        time.Time
}

// PublicUser представление пользователя в ответах API.
type PublicUser struct {
	ID               int64   `json:"id"`
	Email            string  `json:"email"`
	FullName         string  `json:"full_name"`
	TelegramUsername *string `json:"telegram_username,omitempty"`
	IsAdmin          bool    `json:"is_admin"`
}

// Public возвращает представление пользователя без хеша пароля.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:               u.ID,
		Email:            u.Email,
		FullName:         u.FullName,
		TelegramUsername: u.TelegramUsername,
		IsAdmin:          u.IsAdmin,
	}
}
