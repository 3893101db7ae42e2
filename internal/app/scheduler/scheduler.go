// Package scheduler периодически выключает истекшие доступы к чату и
// рассылает напоминания об окончании доступа.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/bankrot-course/internal/cache"
	"github.com/magabrotheeeer/bankrot-course/internal/config"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/sl"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/telegram"
	"github.com/magabrotheeeer/bankrot-course/internal/services/access"
	"github.com/magabrotheeeer/bankrot-course/internal/storage/repository"
)

// AccessService задачи, которые запускает планировщик.
type AccessService interface {
	SweepExpired(ctx context.Context) (*access.SweepResult, error)
	NotifyExpiringSoon(ctx context.Context) (*access.NotifyResult, error)
}

// App представляет приложение планировщика.
type App struct {
	service        AccessService
	logger         *slog.Logger
	sweepInterval  time.Duration
	notifyInterval time.Duration
	closers        []func() error
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := db.WaitReady(ctx, 10, 3*time.Second); err != nil {
		_ = db.Close()
		return nil, err
	}
	closers := []func() error{db.Close}

	var accessCache access.Cache
	if cfg.Redis.Address != "" {
		c, err := cache.InitServer(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, chat ids are not cached", sl.Err(err))
		} else {
			accessCache = c
			closers = append(closers, c.Close)
		}
	}

	schedule := cfg.Scheduler
	var messenger access.Messenger
	if m := telegram.New(cfg.Telegram, logger); m != nil {
		messenger = m
	} else {
		logger.Warn("telegram bot token is not set, reminders are disabled")
		schedule.NotifyInterval = 0
	}

	svc := access.New(logger, db, messenger, accessCache, cfg.Telegram.ChatIDTTL)
	return NewWithService(svc, logger, schedule, closers...), nil
}

// NewWithService создает App поверх готового сервиса.
func NewWithService(svc AccessService, logger *slog.Logger, cfg config.Scheduler, closers ...func() error) *App {
	return &App{
		service:        svc,
		logger:         logger,
		sweepInterval:  cfg.SweepInterval,
		notifyInterval: cfg.NotifyInterval,
		closers:        closers,
	}
}

// Run запускает задачи сразу и затем по своим интервалам до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.loop(ctx, "sweep", a.sweepInterval, a.sweep)
	}()
	go func() {
		defer wg.Done()
		a.loop(ctx, "notify", a.notifyInterval, a.notify)
	}()
	wg.Wait()

	a.logger.Info("shutting down scheduler service")
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Error("failed to close resource", sl.Err(err))
		}
	}
	return nil
}

func (a *App) loop(ctx context.Context, name string, interval time.Duration, job func(context.Context)) {
	if interval <= 0 {
		a.logger.Warn("job disabled", slog.String("job", name))
		return
	}
	job(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job(ctx)
		}
	}
}

func (a *App) sweep(ctx context.Context) {
	res, err := a.service.SweepExpired(ctx)
	if err != nil {
		a.logger.Error("expiry sweep failed", sl.Err(err))
		return
	}
	a.logger.Info("expiry sweep finished", slog.Int("deactivated", res.DeactivatedCount))
}

func (a *App) notify(ctx context.Context) {
	res, err := a.service.NotifyExpiringSoon(ctx)
	if err != nil {
		a.logger.Error("expiry notify failed", sl.Err(err))
		return
	}
	a.logger.Info("expiry notify finished",
		slog.Int("expiring", res.TotalExpiring),
		slog.Int("sent", res.NotificationsSent),
		slog.Int("failed", res.NotificationsFailed))
}
