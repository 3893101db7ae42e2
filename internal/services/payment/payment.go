// Package payment реализует жизненный цикл оплаты курса: создание платежа
// в ЮKassa, подтверждение по webhook или опросу статуса и продление доступа.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/bankrot-course/internal/config"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/sl"
	"github.com/magabrotheeeer/bankrot-course/internal/metrics"
	"github.com/magabrotheeeer/bankrot-course/internal/models"
	"github.com/magabrotheeeer/bankrot-course/internal/paymentprovider"
	"github.com/magabrotheeeer/bankrot-course/internal/storage"
)

var (
	ErrNotConfigured     = errors.New("Payment credentials not configured")
	ErrUserRequired      = errors.New("user_id is required")
	ErrPaymentIDRequired = errors.New("payment_id is required")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrInvalidWebhook    = errors.New("Invalid webhook data")
	ErrUserNotFound      = errors.New("User not found")
	ErrPurchaseNotFound  = errors.New("Purchase not found")
	ErrUserMismatch      = errors.New("Payment belongs to another user")
)

// GatewayError ошибка обращения к ЮKassa. Err содержит ответ шлюза.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return e.Op + ": payment gateway: " + e.Err.Error()
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

const (
	idempotencyKeyPrefix = "payment:idem:"
	idempotencyTTL       = 24 * time.Hour
)

// Gateway платежный шлюз.
type Gateway interface {
	CreatePayment(ctx context.Context, req paymentprovider.CreatePaymentRequest, idempotenceKey string) (*paymentprovider.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*paymentprovider.Payment, error)
}

// Repository хранилище пользователей и покупок.
type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	LockUser(ctx context.Context, id int64) error
	CreatePendingPurchase(ctx context.Context, p models.Purchase) (*models.Purchase, error)
	GetPurchaseByPaymentIDForUpdate(ctx context.Context, paymentID string) (*models.Purchase, error)
	LatestCompletedExpiry(ctx context.Context, userID int64, productType string) (*time.Time, error)
	CompletePurchase(ctx context.Context, id int64, expiresAt time.Time) (bool, error)
}

// Cache хранит ответы на запросы с Idempotence-Key.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// Notifier уведомляет администратора о новой оплате.
type Notifier interface {
	NotifyAdmin(ctx context.Context, n models.AdminNotification) error
}

// CreateParams параметры создания платежа. Нулевые Amount, ReturnURL и
// ProductType заменяются значениями из конфига.
type CreateParams struct {
	UserID         int64
	Amount         float64
	Email          string
	ReturnURL      string
	ProductType    string
	IdempotenceKey string
}

// CreateResult ответ на создание платежа.
type CreateResult struct {
	PaymentID       string `json:"payment_id"`
	PurchaseID      int64  `json:"purchase_id"`
	ConfirmationURL string `json:"confirmation_url"`
	Status          string `json:"status"`
}

// StatusResult текущее состояние платежа в шлюзе.
type StatusResult struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Paid      bool   `json:"paid"`
}

// Результаты обработки webhook.
const (
	WebhookProcessed = "processed"
	WebhookIgnored   = "ignored"
)

// WebhookResult ответ на webhook.
type WebhookResult struct {
	Status string `json:"status"`
}

// Service сервис оплаты курса.
type Service struct {
	log           *slog.Logger
	repo          Repository
	gateway       Gateway
	cache         Cache
	notifier      Notifier
	course        config.Course
	returnURL     string
	configured    bool
	trustWebhooks bool
	now           func() time.Time
}

// New создает сервис. cache и notifier могут быть nil.
func New(log *slog.Logger, repo Repository, gateway Gateway, cache Cache, notifier Notifier, cfg *config.Config) *Service {
	return &Service{
		log:           log,
		repo:          repo,
		gateway:       gateway,
		cache:         cache,
		notifier:      notifier,
		course:        cfg.Course,
		returnURL:     cfg.YooKassa.ReturnURL,
		configured:    cfg.YooKassa.PaymentsConfigured(),
		trustWebhooks: cfg.YooKassa.TrustWebhooks,
		now:           time.Now,
	}
}

// ExtendExpiry правило продления: если текущий доступ еще действует,
// период добавляется к его окончанию, иначе отсчитывается от now.
func ExtendExpiry(current *time.Time, now time.Time, period time.Duration) time.Time {
	if current != nil && current.After(now) {
		return current.Add(period)
	}
	return now.Add(period)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Create создает платеж в ЮKassa и ожидающую покупку.
func (s *Service) Create(ctx context.Context, p CreateParams) (*CreateResult, error) {
	const op = "services.payment.Create"
	log := s.log.With(slog.String("op", op), slog.Int64("user_id", p.UserID))

	if p.UserID <= 0 {
		return nil, ErrUserRequired
	}
	if !s.configured || s.gateway == nil {
		return nil, ErrNotConfigured
	}
	if p.Amount == 0 {
		p.Amount = s.course.DefaultAmount
	}
	if p.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if p.ProductType == "" {
		p.ProductType = models.ProductCourse
	}
	if p.ReturnURL == "" {
		p.ReturnURL = s.returnURL
	}

	if p.IdempotenceKey != "" && s.cache != nil {
		var cached CreateResult
		found, err := s.cache.Get(ctx, idempotencyKeyPrefix+p.IdempotenceKey, &cached)
		if err != nil {
			log.Warn("idempotency cache read failed", sl.Err(err))
		} else if found {
			log.Info("payment request replayed from cache", slog.String("payment_id", cached.PaymentID))
			return &cached, nil
		}
	}

	user, err := s.repo.GetUserByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	key := p.IdempotenceKey
	if key == "" {
		key = uuid.NewString()
	}
	email := p.Email
	if email == "" {
		email = user.Email
	}

	amount := paymentprovider.Amount{Value: formatAmount(p.Amount), Currency: s.course.Currency}
	req := paymentprovider.CreatePaymentRequest{
		Amount:  amount,
		Capture: true,
		Confirmation: paymentprovider.Confirmation{
			Type:      "redirect",
			ReturnURL: p.ReturnURL,
		},
		Description: s.course.PaymentDescription,
		Metadata: map[string]string{
			"user_id":      strconv.FormatInt(p.UserID, 10),
			"product_type": p.ProductType,
		},
	}
	if email != "" {
		req.Receipt = &paymentprovider.Receipt{
			Customer: paymentprovider.Customer{Email: email},
			Items: []paymentprovider.ReceiptItem{{
				Description: s.course.ReceiptDescription,
				Quantity:    "1.00",
				Amount:      amount,
				VatCode:     1,
			}},
		}
	}

	payment, err := s.gateway.CreatePayment(ctx, req, key)
	if err != nil {
		metrics.GatewayErrors.WithLabelValues("create").Inc()
		log.Error("failed to create payment", sl.Err(err))
		return nil, &GatewayError{Op: op, Err: err}
	}

	purchase, err := s.repo.CreatePendingPurchase(ctx, models.Purchase{
		UserID:      p.UserID,
		Amount:      p.Amount,
		PaymentID:   payment.ID,
		ProductType: p.ProductType,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.PaymentsCreated.Inc()

	res := &CreateResult{
		PaymentID:       payment.ID,
		PurchaseID:      purchase.ID,
		ConfirmationURL: payment.ConfirmationURL(),
		Status:          payment.Status,
	}
	if p.IdempotenceKey != "" && s.cache != nil {
		if err := s.cache.Set(ctx, idempotencyKeyPrefix+p.IdempotenceKey, res, idempotencyTTL); err != nil {
			log.Warn("idempotency cache write failed", sl.Err(err))
		}
	}
	log.Info("payment created", slog.String("payment_id", payment.ID), slog.Int64("purchase_id", purchase.ID))
	return res, nil
}

// HandleWebhook применяет событие payment.succeeded. Остальные события
// игнорируются. Если webhook не доверенный, статус перепроверяется в шлюзе.
func (s *Service) HandleWebhook(ctx context.Context, n paymentprovider.Notification) (*WebhookResult, error) {
	const op = "services.payment.HandleWebhook"

	if n.Event != paymentprovider.EventPaymentSucceeded {
		return &WebhookResult{Status: WebhookIgnored}, nil
	}
	paymentID := n.Object.ID
	rawUserID := n.Object.Metadata["user_id"]
	userID, err := strconv.ParseInt(rawUserID, 10, 64)
	if paymentID == "" || err != nil || userID <= 0 {
		return nil, ErrInvalidWebhook
	}
	log := s.log.With(slog.String("op", op), slog.String("payment_id", paymentID))

	if !s.trustWebhooks {
		if s.gateway == nil || !s.configured {
			return nil, ErrNotConfigured
		}
		actual, err := s.gateway.GetPayment(ctx, paymentID)
		if err != nil {
			metrics.GatewayErrors.WithLabelValues("get").Inc()
			return nil, &GatewayError{Op: op, Err: err}
		}
		if actual.Status != paymentprovider.StatusSucceeded {
			log.Warn("webhook is not confirmed by gateway", slog.String("status", actual.Status))
			return &WebhookResult{Status: WebhookIgnored}, nil
		}
		if actual.Metadata["user_id"] != rawUserID {
			return nil, ErrUserMismatch
		}
	}

	if _, err := s.confirm(ctx, paymentID, userID); err != nil {
		return nil, err
	}
	return &WebhookResult{Status: WebhookProcessed}, nil
}

// CheckStatus запрашивает платеж в шлюзе и, если он оплачен, применяет
// подтверждение так же, как webhook.
func (s *Service) CheckStatus(ctx context.Context, paymentID string) (*StatusResult, error) {
	const op = "services.payment.CheckStatus"
	if paymentID == "" {
		return nil, ErrPaymentIDRequired
	}
	if !s.configured || s.gateway == nil {
		return nil, ErrNotConfigured
	}
	log := s.log.With(slog.String("op", op), slog.String("payment_id", paymentID))

	payment, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		metrics.GatewayErrors.WithLabelValues("get").Inc()
		log.Error("failed to check payment status", sl.Err(err))
		return nil, &GatewayError{Op: op, Err: err}
	}

	if payment.Status == paymentprovider.StatusSucceeded {
		userID, perr := strconv.ParseInt(payment.Metadata["user_id"], 10, 64)
		if perr == nil && userID > 0 {
			_, err := s.confirm(ctx, paymentID, userID)
			switch {
			case errors.Is(err, ErrPurchaseNotFound), errors.Is(err, ErrUserMismatch), errors.Is(err, ErrUserNotFound):
				log.Warn("paid payment has no matching purchase", sl.Err(err))
			case err != nil:
				return nil, err
			}
		}
	}

	return &StatusResult{
		PaymentID: paymentID,
		Status:    payment.Status,
		Paid:      payment.Paid,
	}, nil
}

// confirm в одной транзакции блокирует пользователя и покупку и, если
// покупка еще не подтверждена, продлевает доступ. Возвращает true, если
// подтверждение применено этим вызовом.
func (s *Service) confirm(ctx context.Context, paymentID string, userID int64) (bool, error) {
	const op = "services.payment.confirm"

	var (
		applied   bool
		amount    float64
		expiresAt time.Time
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockUser(ctx, userID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		purchase, err := s.repo.GetPurchaseByPaymentIDForUpdate(ctx, paymentID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrPurchaseNotFound
			}
			return err
		}
		if purchase.UserID != userID {
			return ErrUserMismatch
		}
		if purchase.Completed() {
			return nil
		}

		current, err := s.repo.LatestCompletedExpiry(ctx, userID, purchase.ProductType)
		if err != nil {
			return err
		}
		expiresAt = ExtendExpiry(current, s.now(), s.course.RenewalPeriod)
		applied, err = s.repo.CompletePurchase(ctx, purchase.ID, expiresAt)
		amount = purchase.Amount
		return err
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrPurchaseNotFound) || errors.Is(err, ErrUserMismatch) {
			return false, err
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !applied {
		return false, nil
	}

	metrics.PaymentsConfirmed.Inc()
	s.log.Info("payment confirmed",
		slog.String("op", op),
		slog.String("payment_id", paymentID),
		slog.Int64("user_id", userID),
		slog.Time("expires_at", expiresAt))
	s.notifyPayment(ctx, userID, paymentID, amount)
	return true, nil
}

func (s *Service) notifyPayment(ctx context.Context, userID int64, paymentID string, amount float64) {
	if s.notifier == nil {
		return
	}
	log := s.log.With(slog.String("op", "services.payment.notifyPayment"), slog.String("payment_id", paymentID))

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		log.Warn("cannot load user for admin notification", sl.Err(err))
		return
	}
	n := models.AdminNotification{
		Type:    models.NotificationPayment,
		Subject: "Новая оплата курса",
		Message: fmt.Sprintf("Клиент %s успешно оплатил курс", user.FullName),
		Data: map[string]any{
			"email":      user.Email,
			"name":       user.FullName,
			"amount":     amount,
			"payment_id": paymentID,
			"timestamp":  s.now().Format(time.RFC3339),
		},
	}
	if err := s.notifier.NotifyAdmin(ctx, n); err != nil {
		log.Warn("admin notification failed", sl.Err(err))
	}
}
