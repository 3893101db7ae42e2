// Package payment реализует HTTP-обработчик /payment. Действие выбирается
// параметром action: create (по умолчанию), webhook или status.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/bankrot-course/internal/http/middlewarectx"
	"github.com/magabrotheeeer/bankrot-course/internal/http/response"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/sl"
	"github.com/magabrotheeeer/bankrot-course/internal/paymentprovider"
	paymentsvc "github.com/magabrotheeeer/bankrot-course/internal/services/payment"
)

// Service описывает операции оплаты.
type Service interface {
	Create(ctx context.Context, p paymentsvc.CreateParams) (*paymentsvc.CreateResult, error)
	HandleWebhook(ctx context.Context, n paymentprovider.Notification) (*paymentsvc.WebhookResult, error)
	CheckStatus(ctx context.Context, paymentID string) (*paymentsvc.StatusResult, error)
}

// CreateRequest тело запроса на создание платежа. user_id можно не передавать,
// если запрос идет с токеном пользователя.
type CreateRequest struct {
	UserID      int64   `json:"user_id"`
	Amount      float64 `json:"amount" validate:"gte=0"`
	Email       string  `json:"email" validate:"omitempty,email"`
	ReturnURL   string  `json:"return_url" validate:"omitempty,url"`
	ProductType string  `json:"product_type"`
}

// StatusRequest тело запроса статуса, если payment_id не передан в query.
type StatusRequest struct {
	PaymentID string `json:"payment_id"`
}

// Handler обрабатывает запросы к платежам.
type Handler struct {
	log      *slog.Logger
	service  Service
	tokens   middlewarectx.TokenValidator
	validate *validator.Validate
}

// New создает Handler. Если передан tokens и в запросе есть токен,
// user_id берется из него. tokens может быть nil.
func New(log *slog.Logger, service Service, tokens middlewarectx.TokenValidator) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		tokens:   tokens,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	action := r.URL.Query().Get("action")
	switch {
	case (action == "" || action == "create") && r.Method == http.MethodPost:
		h.create(w, r, log)
	case action == "webhook" && r.Method == http.MethodPost:
		h.webhook(w, r, log)
	case action == "status" && (r.Method == http.MethodGet || r.Method == http.MethodPost):
		h.status(w, r, log)
	case action == "" || action == "create" || action == "webhook" || action == "status":
		response.JSON(w, r, http.StatusMethodNotAllowed, response.Error("Method not allowed"))
	default:
		log.Warn("unknown action", slog.String("action", action))
		response.JSON(w, r, http.StatusBadRequest, response.Error("Invalid action"))
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, log *slog.Logger) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Error("failed to decode request body", sl.Err(err))
		response.JSON(w, r, http.StatusBadRequest, response.Error("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		response.JSON(w, r, http.StatusBadRequest, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	if token := middlewarectx.TokenFromRequest(r); token != "" && h.tokens != nil {
		claims, err := h.tokens.ValidateToken(r.Context(), token)
		if err != nil {
			response.JSON(w, r, http.StatusUnauthorized, response.Error(err.Error()))
			return
		}
		req.UserID = claims.UserID
	}

	res, err := h.service.Create(r.Context(), paymentsvc.CreateParams{
		UserID:         req.UserID,
		Amount:         req.Amount,
		Email:          req.Email,
		ReturnURL:      req.ReturnURL,
		ProductType:    req.ProductType,
		IdempotenceKey: r.Header.Get("Idempotence-Key"),
	})
	if err != nil {
		h.writeError(w, r, log, err, "Payment creation failed")
		return
	}
	log.Info("payment created", slog.String("payment_id", res.PaymentID))
	response.JSON(w, r, http.StatusOK, res)
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request, log *slog.Logger) {
	var n paymentprovider.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		log.Error("failed to decode webhook", sl.Err(err))
		response.JSON(w, r, http.StatusBadRequest, response.Error(paymentsvc.ErrInvalidWebhook.Error()))
		return
	}

	res, err := h.service.HandleWebhook(r.Context(), n)
	if err != nil {
		h.writeError(w, r, log, err, "Failed to check payment status")
		return
	}
	log.Info("webhook handled", slog.String("event", n.Event), slog.String("status", res.Status))
	response.JSON(w, r, http.StatusOK, res)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request, log *slog.Logger) {
	paymentID := r.URL.Query().Get("payment_id")
	if paymentID == "" && r.Method == http.MethodPost {
		var req StatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			paymentID = req.PaymentID
		}
	}

	res, err := h.service.CheckStatus(r.Context(), paymentID)
	if err != nil {
		h.writeError(w, r, log, err, "Failed to check payment status")
		return
	}
	response.JSON(w, r, http.StatusOK, res)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error, gatewayMsg string) {
	var gwErr *paymentsvc.GatewayError
	switch {
	case errors.As(err, &gwErr):
		log.Error("payment gateway error", sl.Err(err))
		response.JSON(w, r, http.StatusBadGateway, response.ErrorWithDetails(gatewayMsg, gwErr.Err.Error()))
	case errors.Is(err, paymentsvc.ErrNotConfigured):
		log.Error("payments are not configured")
		response.JSON(w, r, http.StatusInternalServerError, response.Error(err.Error()))
	case errors.Is(err, paymentsvc.ErrUserRequired),
		errors.Is(err, paymentsvc.ErrPaymentIDRequired),
		errors.Is(err, paymentsvc.ErrInvalidAmount),
		errors.Is(err, paymentsvc.ErrInvalidWebhook),
		errors.Is(err, paymentsvc.ErrUserMismatch):
		response.JSON(w, r, http.StatusBadRequest, response.Error(err.Error()))
	case errors.Is(err, paymentsvc.ErrUserNotFound), errors.Is(err, paymentsvc.ErrPurchaseNotFound):
		response.JSON(w, r, http.StatusNotFound, response.Error(err.Error()))
	default:
		log.Error("payment request failed", sl.Err(err))
		response.JSON(w, r, http.StatusInternalServerError, response.Error("Internal server error"))
	}
}
