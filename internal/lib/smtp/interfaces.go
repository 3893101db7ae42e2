// Package smtp предоставляет транспорт для отправки писем через SMTP.
package smtp

import "gopkg.in/gomail.v2"

// TransportInterface интерфейс для SMTP транспорта.
type TransportInterface interface {
	Connect() (gomail.SendCloser, error)
	GetSMTPUser() string
}
