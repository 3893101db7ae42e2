package models

// Типы уведомлений администратору.
const (
	NotificationPayment = "payment"
	NotificationGeneral = "general"
)

// AdminNotification письмо администратору о событии на сайте.
// Это же сообщение уходит в очередь notifications.admin.
type AdminNotification struct {
	Type    string         `json:"type"`
	Subject string         `json:"subject"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}
