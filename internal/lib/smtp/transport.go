package smtp

import (
	"crypto/tls"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"

	"github.com/magabrotheeeer/bankrot-course/internal/config"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/sl"
)

// Transport реализует SMTP транспорт для отправки писем.
// Порт 465 открывает неявный TLS, остальные порты используют STARTTLS.
type Transport struct {
	cfg    config.SMTP
	log    *slog.Logger
	dialer *gomail.Dialer
}

// NewTransport создает новый экземпляр Transport.
func NewTransport(cfg config.SMTP, log *slog.Logger) *Transport {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	d.TLSConfig = &tls.Config{
		ServerName: cfg.Host,
		MinVersion: tls.VersionTLS12,
	}
	return &Transport{cfg: cfg, log: log, dialer: d}
}

// Connect устанавливает соединение с SMTP сервером и проходит авторизацию.
func (t *Transport) Connect() (gomail.SendCloser, error) {
	const op = "smtp.Connect"
	client, err := t.dialer.Dial()
	if err != nil {
		t.log.Error("failed to connect to SMTP server",
			slog.String("host", t.cfg.Host),
			slog.Int("port", t.cfg.Port),
			sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return client, nil
}

// GetSMTPUser возвращает имя пользователя SMTP, оно же адрес отправителя.
func (t *Transport) GetSMTPUser() string {
	return t.cfg.User
}
