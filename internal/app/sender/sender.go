// Package sender читает уведомления администратору из RabbitMQ и
// отправляет их письмами.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/bankrot-course/internal/config"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/sl"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/smtp"
	senderservice "github.com/magabrotheeeer/bankrot-course/internal/services/sender"
)

// App приложение рассылки.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

// New подключается к брокеру и готовит SMTP-транспорт.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("sender.New: rabbitmq url is not set")
	}
	if !cfg.SMTP.Configured() {
		return nil, fmt.Errorf("sender.New: %w", senderservice.ErrNotConfigured)
	}

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)
	senderService := senderservice.NewSenderService(cfg.SMTP, logger, transport)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

// Run обрабатывает очередь до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, rabbitmq.QueueAdmin, a.senderService.HandleAdminMessage)
	if err != nil {
		a.logger.Error("failed to start consumer", slog.String("queue", rabbitmq.QueueAdmin), sl.Err(err))
		return err
	}
	a.logger.Info("consuming admin notifications", slog.String("queue", rabbitmq.QueueAdmin))

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	return nil
}
