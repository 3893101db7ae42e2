// Package passwordreset реализует HTTP-обработчик /reset-password.
package passwordreset

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/bankrot-course/internal/http/response"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/sl"
	resetsvc "github.com/magabrotheeeer/bankrot-course/internal/services/passwordreset"
)

// Service описывает восстановление пароля.
type Service interface {
	RequestReset(ctx context.Context, email string) (string, error)
	ConfirmReset(ctx context.Context, token, newPassword string) (string, error)
}

// Request тело запроса. Для action=request нужен email, для confirm token и password.
type Request struct {
	Action   string `json:"action"`
	Email    string `json:"email"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

// Handler обрабатывает запросы восстановления пароля.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.passwordreset"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.JSON(w, r, http.StatusBadRequest, response.Error("Invalid request body"))
		return
	}

	var (
		msg string
		err error
	)
	switch req.Action {
	case "request":
		msg, err = h.service.RequestReset(r.Context(), req.Email)
	case "confirm":
		msg, err = h.service.ConfirmReset(r.Context(), req.Token, req.Password)
	default:
		response.JSON(w, r, http.StatusBadRequest, response.Error("Invalid action"))
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, resetsvc.ErrEmailRequired),
			errors.Is(err, resetsvc.ErrTokenAndPassRequired),
			errors.Is(err, resetsvc.ErrPasswordTooShort),
			errors.Is(err, resetsvc.ErrInvalidToken),
			errors.Is(err, resetsvc.ErrTokenExpired):
			response.JSON(w, r, http.StatusBadRequest, response.Error(err.Error()))
		default:
			log.Error("password reset failed", slog.String("action", req.Action), sl.Err(err))
			response.JSON(w, r, http.StatusInternalServerError, response.Error("Internal server error"))
		}
		return
	}
	response.JSON(w, r, http.StatusOK, response.Message(msg))
}
