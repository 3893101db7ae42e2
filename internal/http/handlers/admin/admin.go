// Package admin содержит служебные ручки администратора.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/bankrot-course/internal/http/response"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/sl"
	"github.com/magabrotheeeer/bankrot-course/internal/models"
	"github.com/magabrotheeeer/bankrot-course/internal/services/auth"
	"github.com/magabrotheeeer/bankrot-course/internal/services/sender"
)

// Notifier отправляет письмо администратору.
type Notifier interface {
	SendDirect(ctx context.Context, msg models.AdminNotification) error
}

// CredentialsService выдает временный пароль.
type CredentialsService interface {
	ResendCredentials(ctx context.Context, email string) error
}

// NotifyRequest тело запроса /admin/notify.
type NotifyRequest struct {
	Type    string         `json:"type"`
	Subject string         `json:"subject" validate:"required"`
	Message string         `json:"message" validate:"required"`
	Data    map[string]any `json:"data"`
}

// ResendRequest тело запроса /admin/resend-credentials.
type ResendRequest struct {
	Email string `json:"email"`
}

// Handler ручки администратора.
type Handler struct {
	log         *slog.Logger
	notifier    Notifier
	credentials CredentialsService
	validate    *validator.Validate
}

// New создает Handler.
func New(log *slog.Logger, notifier Notifier, credentials CredentialsService) *Handler {
	return &Handler{
		log:         log,
		notifier:    notifier,
		credentials: credentials,
		validate:    validator.New(),
	}
}

// Notify отправляет произвольное уведомление на почту администратора.
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.notify"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.JSON(w, r, http.StatusBadRequest, response.Error("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.JSON(w, r, http.StatusBadRequest, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}
	if req.Type == "" {
		req.Type = models.NotificationGeneral
	}

	err := h.notifier.SendDirect(r.Context(), models.AdminNotification{
		Type:    req.Type,
		Subject: req.Subject,
		Message: req.Message,
		Data:    req.Data,
	})
	if err != nil {
		if errors.Is(err, sender.ErrNotConfigured) {
			log.Error("smtp is not configured")
			response.JSON(w, r, http.StatusInternalServerError, response.Error(sender.ErrNotConfigured.Error()))
			return
		}
		log.Error("failed to send notification", sl.Err(err))
		response.JSON(w, r, http.StatusBadGateway, response.ErrorWithDetails("Failed to send email", err.Error()))
		return
	}

	log.Info("admin notification sent", slog.String("type", req.Type))
	response.JSON(w, r, http.StatusOK, map[string]any{"success": true})
}

// ResendCredentials выдает пользователю временный пароль.
func (h *Handler) ResendCredentials(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.resend_credentials"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req ResendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.JSON(w, r, http.StatusBadRequest, response.Error("Invalid request body"))
		return
	}

	if err := h.credentials.ResendCredentials(r.Context(), req.Email); err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailRequired):
			response.JSON(w, r, http.StatusBadRequest, response.Error(err.Error()))
		case errors.Is(err, auth.ErrUserNotFound):
			response.JSON(w, r, http.StatusNotFound, response.Error(err.Error()))
		case errors.Is(err, sender.ErrNotConfigured):
			log.Error("smtp is not configured")
			response.JSON(w, r, http.StatusInternalServerError, response.Error(sender.ErrNotConfigured.Error()))
		default:
			log.Error("failed to resend credentials", sl.Err(err))
			response.JSON(w, r, http.StatusInternalServerError, response.Error("Internal server error"))
		}
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"success": true, "message": "Credentials sent"})
}
