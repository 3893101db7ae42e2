// Package auth реализует HTTP-обработчик /auth: POST с action register или login
// и GET для проверки токена.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/bankrot-course/internal/http/middlewarectx"
	"github.com/magabrotheeeer/bankrot-course/internal/http/response"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/jwt"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/sl"
	authsvc "github.com/magabrotheeeer/bankrot-course/internal/services/auth"
)

// Service описывает интерфейс бизнес-логики аутентификации.
type Service interface {
	Register(ctx context.Context, email, password, fullName, telegramUsername string) (*authsvc.Session, error)
	Login(ctx context.Context, email, password string) (*authsvc.Session, error)
	ValidateToken(ctx context.Context, token string) (*jwt.CustomClaims, error)
}

// Request тело POST-запроса.
type Request struct {
	Action           string `json:"action"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	FullName         string `json:"full_name"`
	TelegramUsername string `json:"telegram_username"`
}

// ValidateResponse ответ на проверку токена.
type ValidateResponse struct {
	Valid bool          `json:"valid"`
	User  ValidatedUser `json:"user"`
}

// ValidatedUser данные пользователя из токена.
type ValidatedUser struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	IsAdmin  bool   `json:"is_admin"`
}

// Handler обрабатывает HTTP-запросы аутентификации.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	switch r.Method {
	case http.MethodGet:
		h.validate(w, r, log)
	case http.MethodPost:
		h.post(w, r, log)
	default:
		response.JSON(w, r, http.StatusMethodNotAllowed, response.Error("Method not allowed"))
	}
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request, log *slog.Logger) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.JSON(w, r, http.StatusBadRequest, response.Error("Invalid request body"))
		return
	}

	var (
		session *authsvc.Session
		status  int
		err     error
	)
	switch req.Action {
	case "register":
		session, err = h.service.Register(r.Context(), req.Email, req.Password, req.FullName, req.TelegramUsername)
		status = http.StatusCreated
	case "login":
		session, err = h.service.Login(r.Context(), req.Email, req.Password)
		status = http.StatusOK
	default:
		response.JSON(w, r, http.StatusBadRequest, response.Error("Invalid action"))
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, authsvc.ErrMissingFields), errors.Is(err, authsvc.ErrLoginFields):
			response.JSON(w, r, http.StatusBadRequest, response.Error(err.Error()))
		case errors.Is(err, authsvc.ErrUserExists):
			response.JSON(w, r, http.StatusConflict, response.Error(err.Error()))
		case errors.Is(err, authsvc.ErrInvalidCredentials):
			log.Info("login rejected")
			response.JSON(w, r, http.StatusUnauthorized, response.Error(err.Error()))
		default:
			log.Error("auth request failed", slog.String("action", req.Action), sl.Err(err))
			response.JSON(w, r, http.StatusInternalServerError, response.Error("Internal server error"))
		}
		return
	}
	log.Info("auth success", slog.String("action", req.Action), slog.Int64("user_id", session.User.ID))
	response.JSON(w, r, status, session)
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request, log *slog.Logger) {
	claims, err := h.service.ValidateToken(r.Context(), middlewarectx.TokenFromRequest(r))
	if err != nil {
		log.Debug("token rejected", sl.Err(err))
		response.JSON(w, r, http.StatusUnauthorized, response.Error(err.Error()))
		return
	}
	response.JSON(w, r, http.StatusOK, ValidateResponse{
		Valid: true,
		User: ValidatedUser{
			ID:       claims.UserID,
			Email:    claims.Email,
			FullName: claims.FullName,
			IsAdmin:  claims.IsAdmin,
		},
	})
}
