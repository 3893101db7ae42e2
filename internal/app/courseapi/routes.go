package courseapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/bankrot-course/internal/config"
	"github.com/magabrotheeeer/bankrot-course/internal/http/handlers/admin"
	"github.com/magabrotheeeer/bankrot-course/internal/http/handlers/chataccess"
	"github.com/magabrotheeeer/bankrot-course/internal/http/handlers/files"
	"github.com/magabrotheeeer/bankrot-course/internal/http/middlewarectx"
)

// Handlers обработчики, которые монтирует RegisterRoutes.
type Handlers struct {
	Payment       http.Handler
	Auth          http.Handler
	PasswordReset http.Handler
	Health        http.Handler
	ChatAccess    *chataccess.Handler
	Files         *files.Handler
	Admin         *admin.Handler
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, tokens middlewarectx.TokenValidator, limit config.RateLimit, h Handlers) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middlewarectx.CORS(),
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Оплата: create, webhook и status различаются параметром action.
		r.Handle("/payment", h.Payment)

		r.Get("/chat-access/expire", h.ChatAccess.Expire)
		r.Post("/chat-access/expire", h.ChatAccess.Expire)
		r.Get("/chat-access/notify", h.ChatAccess.Notify)
		r.Post("/chat-access/notify", h.ChatAccess.Notify)

		// Открытые ручки с ограничением частоты
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, limit.RPS, limit.Burst))
			r.Handle("/auth", h.Auth)
			r.Handle("/reset-password", h.PasswordReset)
		})

		// Только для администратора
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.AuthMiddleware(tokens, logger))
			r.Use(middlewarectx.AdminOnly(logger))

			r.Post("/files", h.Files.Upload)
			r.Get("/files", h.Files.List)
			r.Delete("/files", h.Files.Delete)
			r.Get("/files/{id}/content", h.Files.Content)

			r.Post("/admin/chat-access", h.ChatAccess.Grant)
			r.Get("/admin/chat-access", h.ChatAccess.List)
			r.Post("/admin/notify", h.Admin.Notify)
			r.Post("/admin/resend-credentials", h.Admin.ResendCredentials)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/health", h.Health)
}
