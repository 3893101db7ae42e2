// Package notifier доставляет уведомления администратору: через очередь
// RabbitMQ, если она настроена, иначе письмом напрямую.
package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/bankrot-course/internal/lib/sl"
	"github.com/magabrotheeeer/bankrot-course/internal/models"
)

// Publisher публикует сообщение в очередь.
type Publisher interface {
	Publish(ctx context.Context, message any) error
}

// Mailer отправляет уведомление письмом.
type Mailer interface {
	SendAdminNotification(ctx context.Context, n models.AdminNotification) error
}

// Notifier выбирает канал доставки.
type Notifier struct {
	log       *slog.Logger
	publisher Publisher
	mailer    Mailer
}

// New создает Notifier. publisher может быть nil.
func New(log *slog.Logger, publisher Publisher, mailer Mailer) *Notifier {
	return &Notifier{log: log, publisher: publisher, mailer: mailer}
}

// NotifyAdmin ставит уведомление в очередь или отправляет письмо.
func (n *Notifier) NotifyAdmin(ctx context.Context, msg models.AdminNotification) error {
	const op = "notifier.NotifyAdmin"
	log := n.log.With(slog.String("op", op), slog.String("type", msg.Type))

	if n.publisher != nil {
		if err := n.publisher.Publish(ctx, msg); err != nil {
			log.Error("failed to publish notification", sl.Err(err))
			return fmt.Errorf("%s: %w", op, err)
		}
		log.Debug("notification queued")
		return nil
	}

	if err := n.mailer.SendAdminNotification(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SendDirect всегда отправляет письмо сразу. Используется ручкой
// /admin/notify, которой нужен результат отправки.
func (n *Notifier) SendDirect(ctx context.Context, msg models.AdminNotification) error {
	if err := n.mailer.SendAdminNotification(ctx, msg); err != nil {
		return fmt.Errorf("notifier.SendDirect: %w", err)
	}
	return nil
}
