// Package access управляет доступом клиентов к чату с юристами:
// выдает окна доступа, выключает истекшие и напоминает об окончании.
package access

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/bankrot-course/internal/lib/sl"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/telegram"
	"github.com/magabrotheeeer/bankrot-course/internal/metrics"
	"github.com/magabrotheeeer/bankrot-course/internal/models"
)

var (
	ErrTelegramNotConfigured = errors.New("TELEGRAM_BOT_TOKEN not configured")
	ErrClientNameRequired    = errors.New("client_name is required")
	ErrInvalidPeriod         = errors.New("days or access_end in the future is required")
)

// Причины неудачной отправки напоминания.
const (
	ReasonChatNotFound = "Chat ID not found. User needs to start bot first"
	ReasonSendFailed   = "Failed to send message"
)

const chatIDKeyPrefix = "telegram:chat:"

// Repository хранилище окон доступа.
type Repository interface {
	CreateChatAccess(ctx context.Context, a models.ChatAccess) (*models.ChatAccess, error)
	ListChatAccess(ctx context.Context, activeOnly bool) ([]models.ChatAccess, error)
	DeactivateExpired(ctx context.Context, now time.Time) ([]models.ChatAccess, error)
	FindExpiringBetween(ctx context.Context, from, to time.Time) ([]models.ChatAccess, error)
}

// Messenger бот, через который отправляются напоминания.
type Messenger interface {
	FindChatID(ctx context.Context, username string) (int64, error)
	SendHTML(ctx context.Context, chatID int64, text string) error
}

// Cache кэш chat id по username.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// DeactivatedClient клиент, у которого выключен доступ.
type DeactivatedClient struct {
	ID               int64     `json:"id"`
	ClientName       string    `json:"client_name"`
	TelegramUsername string    `json:"telegram_username"`
	AccessEnd        time.Time `json:"access_end"`
}

// SweepResult результат выключения истекших доступов.
type SweepResult struct {
	Success            bool                `json:"success"`
	DeactivatedCount   int                 `json:"deactivated_count"`
	DeactivatedClients []DeactivatedClient `json:"deactivated_clients"`
	CheckedAt          time.Time           `json:"checked_at"`
}

// SentDetail успешно отправленное напоминание.
type SentDetail struct {
	ID               int64  `json:"id"`
	ClientName       string `json:"client_name"`
	TelegramUsername string `json:"telegram_username"`
}

// FailedDetail неотправленное напоминание с причиной.
type FailedDetail struct {
	ID         int64  `json:"id"`
	ClientName string `json:"client_name"`
	Reason     string `json:"reason"`
}

// NotifyResult итог рассылки напоминаний.
type NotifyResult struct {
	Success             bool           `json:"success"`
	TotalExpiring       int            `json:"total_expiring"`
	NotificationsSent   int            `json:"notifications_sent"`
	NotificationsFailed int            `json:"notifications_failed"`
	SentDetails         []SentDetail   `json:"sent_details"`
	FailedDetails       []FailedDetail `json:"failed_details"`
	CheckedAt           time.Time      `json:"checked_at"`
}

// GrantParams параметры выдачи доступа. Если AccessEnd не задан,
// доступ выдается на Days дней от текущего момента.
type GrantParams struct {
	ClientName       string
	TelegramUsername string
	Days             int
	AccessEnd        *time.Time
}

// Service сервис доступа к чату.
type Service struct {
	log       *slog.Logger
	repo      Repository
	messenger Messenger
	cache     Cache
	chatIDTTL time.Duration
	now       func() time.Time
}

// New создает сервис. messenger nil, если бот не настроен; cache может быть nil.
func New(log *slog.Logger, repo Repository, messenger Messenger, cache Cache, chatIDTTL time.Duration) *Service {
	return &Service{
		log:       log,
		repo:      repo,
		messenger: messenger,
		cache:     cache,
		chatIDTTL: chatIDTTL,
		now:       time.Now,
	}
}

// SweepExpired выключает все активные доступы с окончанием не позже текущего момента.
func (s *Service) SweepExpired(ctx context.Context) (*SweepResult, error) {
	const op = "services.access.SweepExpired"
	now := s.now()

	rows, err := s.repo.DeactivateExpired(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	clients := make([]DeactivatedClient, 0, len(rows))
	for _, r := range rows {
		clients = append(clients, DeactivatedClient{
			ID:               r.ID,
			ClientName:       r.ClientName,
			TelegramUsername: r.TelegramUsername,
			AccessEnd:        r.AccessEnd,
		})
	}
	metrics.AccessDeactivated.Add(float64(len(clients)))
	if len(clients) > 0 {
		s.log.Info("expired chat access deactivated", slog.String("op", op), slog.Int("count", len(clients)))
	}

	return &SweepResult{
		Success:            true,
		DeactivatedCount:   len(clients),
		DeactivatedClients: clients,
		CheckedAt:          now,
	}, nil
}

// NotifyExpiringSoon напоминает клиентам, чей доступ заканчивается в
// интервале [now+24h, now+48h). Ошибка по одному клиенту не прерывает рассылку.
func (s *Service) NotifyExpiringSoon(ctx context.Context) (*NotifyResult, error) {
	const op = "services.access.NotifyExpiringSoon"
	if s.messenger == nil {
		return nil, ErrTelegramNotConfigured
	}
	log := s.log.With(slog.String("op", op))
	now := s.now()

	rows, err := s.repo.FindExpiringBetween(ctx, now.Add(24*time.Hour), now.Add(48*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res := &NotifyResult{
		Success:       true,
		TotalExpiring: len(rows),
		SentDetails:   make([]SentDetail, 0),
		FailedDetails: make([]FailedDetail, 0),
		CheckedAt:     now,
	}
	for _, r := range rows {
		if reason := s.notifyOne(ctx, log, r); reason != "" {
			res.FailedDetails = append(res.FailedDetails, FailedDetail{
				ID:         r.ID,
				ClientName: r.ClientName,
				Reason:     reason,
			})
			metrics.ExpiryNotifications.WithLabelValues(metrics.OutcomeFailed).Inc()
			continue
		}
		res.SentDetails = append(res.SentDetails, SentDetail{
			ID:               r.ID,
			ClientName:       r.ClientName,
			TelegramUsername: r.TelegramUsername,
		})
		metrics.ExpiryNotifications.WithLabelValues(metrics.OutcomeSent).Inc()
	}
	res.NotificationsSent = len(res.SentDetails)
	res.NotificationsFailed = len(res.FailedDetails)

	log.Info("expiry reminders processed",
		slog.Int("total", res.TotalExpiring),
		slog.Int("sent", res.NotificationsSent),
		slog.Int("failed", res.NotificationsFailed))
	return res, nil
}

// notifyOne возвращает причину неудачи или пустую строку.
func (s *Service) notifyOne(ctx context.Context, log *slog.Logger, a models.ChatAccess) string {
	log = log.With(slog.Int64("access_id", a.ID), slog.String("telegram_username", a.TelegramUsername))

	chatID, err := s.chatID(ctx, a.TelegramUsername)
	if err != nil {
		log.Warn("chat id lookup failed", sl.Err(err))
		return ReasonChatNotFound
	}
	if err := s.messenger.SendHTML(ctx, chatID, ReminderText(a.ClientName, a.AccessEnd)); err != nil {
		log.Error("failed to send reminder", sl.Err(err))
		return ReasonSendFailed
	}
	return ""
}

func (s *Service) chatID(ctx context.Context, username string) (int64, error) {
	key := chatIDKeyPrefix + strings.ToLower(telegram.NormalizeUsername(username))
	if s.cache != nil {
		var id int64
		found, err := s.cache.Get(ctx, key, &id)
		if err != nil {
			s.log.Debug("chat id cache read failed", sl.Err(err))
		} else if found {
			return id, nil
		}
	}

	id, err := s.messenger.FindChatID(ctx, username)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, id, s.chatIDTTL); err != nil {
			s.log.Debug("chat id cache write failed", sl.Err(err))
		}
	}
	return id, nil
}

// ReminderText текст напоминания в разметке HTML. Имя экранируется.
func ReminderText(clientName string, accessEnd time.Time) string {
	return fmt.Sprintf("🔔 <b>Напоминание о доступе к чату</b>\n\n"+
		"Здравствуйте, %s!\n\n"+
		"Ваш доступ к чату с юристами истекает завтра (%s).\n\n"+
		"Если хотите продлить доступ, свяжитесь с нами.\n\n"+
		"С уважением,\nВалентина Голосова",
		html.EscapeString(clientName), accessEnd.Format("02.01.2006"))
}

// GrantAccess выдает новое активное окно доступа.
func (s *Service) GrantAccess(ctx context.Context, p GrantParams) (*models.ChatAccess, error) {
	const op = "services.access.GrantAccess"
	name := strings.TrimSpace(p.ClientName)
	if name == "" {
		return nil, ErrClientNameRequired
	}
	now := s.now()

	var end time.Time
	switch {
	case p.AccessEnd != nil:
		end = *p.AccessEnd
	case p.Days > 0:
		end = now.AddDate(0, 0, p.Days)
	}
	if !end.After(now) {
		return nil, ErrInvalidPeriod
	}

	created, err := s.repo.CreateChatAccess(ctx, models.ChatAccess{
		ClientName:       name,
		TelegramUsername: telegram.NormalizeUsername(p.TelegramUsername),
		AccessStart:      now,
		AccessEnd:        end,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("chat access granted", slog.String("op", op), slog.Int64("access_id", created.ID))
	return created, nil
}

// ListAccess возвращает окна доступа, при activeOnly только активные.
func (s *Service) ListAccess(ctx context.Context, activeOnly bool) ([]models.ChatAccess, error) {
	const op = "services.access.ListAccess"
	res, err := s.repo.ListChatAccess(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}
