package models

import "time"

// ChatAccess окно доступа клиента к чату с юристами.
type ChatAccess struct {
	ID               int64     `json:"id"`
	ClientName       string    `json:"client_name"`
	TelegramUsername string    `json:"telegram_username"`
	IsActive         bool      `json:"is_active"`
	AccessStart      time.Time `json:"access_start"`
	AccessEnd        time.Time `json:"access_end"`
}
