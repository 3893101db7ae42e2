// Package chataccess реализует HTTP-обработчики доступа к чату с юристами:
// выключение истекших доступов, напоминания и админские выдача и список.
package chataccess

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/bankrot-course/internal/http/response"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/sl"
	"github.com/magabrotheeeer/bankrot-course/internal/models"
	"github.com/magabrotheeeer/bankrot-course/internal/services/access"
)

// Service описывает операции с доступом к чату.
type Service interface {
	SweepExpired(ctx context.Context) (*access.SweepResult, error)
	NotifyExpiringSoon(ctx context.Context) (*access.NotifyResult, error)
	GrantAccess(ctx context.Context, p access.GrantParams) (*models.ChatAccess, error)
	ListAccess(ctx context.Context, activeOnly bool) ([]models.ChatAccess, error)
}

// Handler обработчики доступа к чату.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Expire выключает истекшие доступы.
func (h *Handler) Expire(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.chataccess.expire")

	res, err := h.service.SweepExpired(r.Context())
	if err != nil {
		log.Error("sweep failed", sl.Err(err))
		response.JSON(w, r, http.StatusInternalServerError, response.Error("Internal server error"))
		return
	}
	response.JSON(w, r, http.StatusOK, res)
}

// Notify рассылает напоминания клиентам, чей доступ истекает завтра.
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.chataccess.notify")

	res, err := h.service.NotifyExpiringSoon(r.Context())
	if err != nil {
		if errors.Is(err, access.ErrTelegramNotConfigured) {
			log.Error("telegram is not configured")
			response.JSON(w, r, http.StatusInternalServerError, response.Error(err.Error()))
			return
		}
		log.Error("notify failed", sl.Err(err))
		response.JSON(w, r, http.StatusInternalServerError, response.Error("Internal server error"))
		return
	}
	response.JSON(w, r, http.StatusOK, res)
}

// GrantRequest тело запроса на выдачу доступа.
type GrantRequest struct {
	ClientName       string     `json:"client_name" validate:"required"`
	TelegramUsername string     `json:"telegram_username"`
	Days             int        `json:"days" validate:"gte=0"`
	AccessEnd        *time.Time `json:"access_end"`
}

// Grant выдает новое окно доступа.
func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.chataccess.grant")

	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.JSON(w, r, http.StatusBadRequest, response.Error("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.JSON(w, r, http.StatusBadRequest, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	created, err := h.service.GrantAccess(r.Context(), access.GrantParams{
		ClientName:       req.ClientName,
		TelegramUsername: req.TelegramUsername,
		Days:             req.Days,
		AccessEnd:        req.AccessEnd,
	})
	if err != nil {
		if errors.Is(err, access.ErrClientNameRequired) || errors.Is(err, access.ErrInvalidPeriod) {
			response.JSON(w, r, http.StatusBadRequest, response.Error(err.Error()))
			return
		}
		log.Error("grant failed", sl.Err(err))
		response.JSON(w, r, http.StatusInternalServerError, response.Error("Internal server error"))
		return
	}
	log.Info("chat access granted", slog.Int64("access_id", created.ID))
	response.JSON(w, r, http.StatusCreated, created)
}

// List возвращает окна доступа. ?active=true оставляет только активные.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.chataccess.list")

	activeOnly := false
	if raw := r.URL.Query().Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.JSON(w, r, http.StatusBadRequest, response.Error("active must be a boolean"))
			return
		}
		activeOnly = v
	}

	res, err := h.service.ListAccess(r.Context(), activeOnly)
	if err != nil {
		log.Error("list failed", sl.Err(err))
		response.JSON(w, r, http.StatusInternalServerError, response.Error("Internal server error"))
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"items": res})
}
