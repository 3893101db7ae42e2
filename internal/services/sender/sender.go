// Package sender отправляет письма сервиса курса через SMTP: уведомления
// администратору, ссылки сброса пароля и данные для входа.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/magabrotheeeer/bankrot-course/internal/config"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/sl"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/smtp"
	"github.com/magabrotheeeer/bankrot-course/internal/metrics"
	"github.com/magabrotheeeer/bankrot-course/internal/models"
)

// ErrNotConfigured не заданы настройки SMTP или адрес администратора.
var ErrNotConfigured = errors.New("SMTP configuration missing")

const (
	defaultSubject     = "Уведомление с сайта"
	resetSubject       = "Восстановление пароля"
	credentialsSubject = `Доступ к курсу "Банкротство физических лиц"`
)

// SenderService формирует и отправляет письма.
type SenderService struct {
	transport  smtp.TransportInterface
	log        *slog.Logger
	adminEmail string
	configured bool
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(cfg config.SMTP, log *slog.Logger, transport smtp.TransportInterface) *SenderService {
	return &SenderService{
		transport:  transport,
		log:        log,
		adminEmail: cfg.AdminEmail,
		configured: cfg.Configured(),
	}
}

// SendAdminNotification отправляет уведомление на адрес администратора.
// Пустые type и subject заменяются на general и "Уведомление с сайта".
func (s *SenderService) SendAdminNotification(_ context.Context, n models.AdminNotification) error {
	const op = "sender.SendAdminNotification"
	if !s.configured {
		return fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}
	if n.Type == "" {
		n.Type = models.NotificationGeneral
	}
	if n.Subject == "" {
		n.Subject = defaultSubject
	}

	var data string
	if len(n.Data) > 0 {
		pretty, err := json.MarshalIndent(n.Data, "", "  ")
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		data = string(pretty)
	}

	body, err := render(adminTemplate, map[string]string{
		"Subject": n.Subject,
		"Message": n.Message,
		"Data":    data,
		"Type":    n.Type,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.sendEmail([]string{s.adminEmail}, n.Subject, body); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// HandleAdminMessage обрабатывает сообщение из очереди notifications.admin.
func (s *SenderService) HandleAdminMessage(ctx context.Context, body []byte) error {
	var n models.AdminNotification
	if err := json.Unmarshal(body, &n); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("sender.HandleAdminMessage: %w", err)
	}
	return s.SendAdminNotification(ctx, n)
}

// SendPasswordReset отправляет ссылку на смену пароля.
func (s *SenderService) SendPasswordReset(_ context.Context, to, name, resetURL string, ttl time.Duration) error {
	const op = "sender.SendPasswordReset"
	body, err := render(resetTemplate, map[string]string{
		"Name": name,
		"URL":  resetURL,
		"TTL":  humanizeTTL(ttl),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.sendEmail([]string{to}, resetSubject, body); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SendCredentials отправляет пользователю email и временный пароль.
func (s *SenderService) SendCredentials(_ context.Context, to, name, password, loginURL string) error {
	const op = "sender.SendCredentials"
	body, err := render(credentialsTemplate, map[string]string{
		"Name":     name,
		"Email":    to,
		"Password": password,
		"LoginURL": loginURL,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.sendEmail([]string{to}, credentialsSubject, body); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func humanizeTTL(ttl time.Duration) string {
	switch {
	case ttl == time.Hour:
		return "1 часа"
	case ttl > 0 && ttl%time.Hour == 0:
		return fmt.Sprintf("%d ч.", int(ttl/time.Hour))
	case ttl > 0:
		return fmt.Sprintf("%d мин.", int(ttl/time.Minute))
	default:
		return "1 часа"
	}
}

func (s *SenderService) sendEmail(to []string, subject, htmlBody string) error {
	from := s.transport.GetSMTPUser()

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	client, err := s.transport.Connect()
	if err != nil {
		metrics.EmailsSent.WithLabelValues(metrics.OutcomeFailed).Inc()
		return err
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			s.log.Warn("failed to close SMTP connection", sl.Err(cerr))
		}
	}()

	if err := gomail.Send(client, m); err != nil {
		metrics.EmailsSent.WithLabelValues(metrics.OutcomeFailed).Inc()
		s.log.Error("failed to send email", slog.Any("to", to), sl.Err(err))
		return err
	}

	metrics.EmailsSent.WithLabelValues(metrics.OutcomeSent).Inc()
	s.log.Info("email sent successfully", slog.Any("to", to), slog.String("subject", subject))
	return nil
}
