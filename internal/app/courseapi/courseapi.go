// Package courseapi собирает HTTP API сервиса курса: хранилище, внешние
// клиенты, сервисы, обработчики и маршруты.
package courseapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/bankrot-course/internal/cache"
	"github.com/magabrotheeeer/bankrot-course/internal/config"
	"github.com/magabrotheeeer/bankrot-course/internal/http/handlers/admin"
	authhandler "github.com/magabrotheeeer/bankrot-course/internal/http/handlers/auth"
	"github.com/magabrotheeeer/bankrot-course/internal/http/handlers/chataccess"
	fileshandler "github.com/magabrotheeeer/bankrot-course/internal/http/handlers/files"
	"github.com/magabrotheeeer/bankrot-course/internal/http/handlers/health"
	paymenthandler "github.com/magabrotheeeer/bankrot-course/internal/http/handlers/payment"
	resethandler "github.com/magabrotheeeer/bankrot-course/internal/http/handlers/passwordreset"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/jwt"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/sl"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/smtp"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/telegram"
	"github.com/magabrotheeeer/bankrot-course/internal/migrations"
	"github.com/magabrotheeeer/bankrot-course/internal/objectstorage"
	"github.com/magabrotheeeer/bankrot-course/internal/paymentprovider"
	"github.com/magabrotheeeer/bankrot-course/internal/services/access"
	authservice "github.com/magabrotheeeer/bankrot-course/internal/services/auth"
	filesservice "github.com/magabrotheeeer/bankrot-course/internal/services/files"
	"github.com/magabrotheeeer/bankrot-course/internal/services/notifier"
	resetservice "github.com/magabrotheeeer/bankrot-course/internal/services/passwordreset"
	paymentservice "github.com/magabrotheeeer/bankrot-course/internal/services/payment"
	senderservice "github.com/magabrotheeeer/bankrot-course/internal/services/sender"
	"github.com/magabrotheeeer/bankrot-course/internal/storage/repository"
)

// App HTTP-приложение сервиса курса.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New подключает зависимости и собирает роутер. Redis, RabbitMQ, S3 и
// Telegram необязательны: без них соответствующие функции отключаются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "courseapi.New"

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := db.WaitReady(ctx, 10, 3*time.Second); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	version, err := migrations.Run(db.DB, cfg.MigrationsPath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("migrations applied", slog.Uint64("version", uint64(version)))

	a := &App{logger: logger, db: db}

	var (
		paymentCache paymentservice.Cache
		accessCache  access.Cache
		healthChecks = map[string]health.Pinger{"database": db}
	)
	if cfg.Redis.Address != "" {
		c, err := cache.InitServer(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, cache disabled", sl.Err(err))
		} else {
			a.cache = c
			paymentCache, accessCache = c, c
			healthChecks["redis"] = c
		}
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)
	mailer := senderservice.NewSenderService(cfg.SMTP, logger, transport)

	var publisher notifier.Publisher
	if cfg.RabbitMQ.URL != "" {
		conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
		if err != nil {
			logger.Warn("rabbitmq unavailable, admin emails are sent directly", sl.Err(err))
		} else {
			ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
			if err != nil {
				_ = conn.Close()
				logger.Warn("rabbitmq channel setup failed, admin emails are sent directly", sl.Err(err))
			} else {
				a.conn, a.ch = conn, ch
				publisher = rabbitmq.NewPublisher(ch, rabbitmq.ExchangeNotifications, rabbitmq.RoutingKeyAdmin)
			}
		}
	}
	adminNotifier := notifier.New(logger, publisher, mailer)

	var messenger access.Messenger
	if m := telegram.New(cfg.Telegram, logger); m != nil {
		messenger = m
	}

	var objects filesservice.ObjectStore
	if cfg.Files.Backend != filesservice.BackendDatabase {
		store, err := objectstorage.NewS3Store(ctx, cfg.S3)
		if err != nil {
			logger.Warn("object storage is not available", sl.Err(err))
		} else {
			objects = store
		}
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWT.SecretKey, cfg.JWT.TokenTTL)
	authService := authservice.NewAuthService(logger, db, jwtMaker, mailer, cfg.Course.LoginURL)
	paymentService := paymentservice.New(logger, db, paymentprovider.NewClient(cfg.YooKassa), paymentCache, adminNotifier, cfg)
	accessService := access.New(logger, db, messenger, accessCache, cfg.Telegram.ChatIDTTL)
	resetService := resetservice.New(logger, db, mailer, cfg.Reset)
	filesService := filesservice.New(logger, db, objects, cfg.Files)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, authService, cfg.RateLimit, Handlers{
		Payment:       paymenthandler.New(logger, paymentService, authService),
		Auth:          authhandler.New(logger, authService),
		PasswordReset: resethandler.New(logger, resetService),
		Health:        health.New(logger, healthChecks),
		ChatAccess:    chataccess.New(logger, accessService),
		Files:         fileshandler.New(logger, filesService),
		Admin:         admin.New(logger, adminNotifier, authService),
	})

	a.server = &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}
	return a, nil
}

// Run запускает HTTP-сервер и останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err = a.server.Shutdown(timeoutCtx)
	}
	a.close()
	return err
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
