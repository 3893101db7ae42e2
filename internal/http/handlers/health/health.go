// Package health отдает состояние сервиса и его зависимостей.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/magabrotheeeer/bankrot-course/internal/http/response"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/sl"
)

// Pinger проверяет доступность зависимости.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler проверяет зависимости по имени.
type Handler struct {
	log     *slog.Logger
	checks  map[string]Pinger
	timeout time.Duration
}

// New создает Handler. Пустые значения в checks пропускаются.
func New(log *slog.Logger, checks map[string]Pinger) *Handler {
	filtered := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			filtered[name] = p
		}
	}
	return &Handler{log: log, checks: filtered, timeout: 2 * time.Second}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	components := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			h.log.Warn("health check failed", slog.String("op", op), slog.String("component", name), sl.Err(err))
			components[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	response.JSON(w, r, status, map[string]any{
		"status":     overall,
		"components": components,
	})
}
