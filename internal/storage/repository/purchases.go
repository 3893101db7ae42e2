package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/bankrot-course/internal/models"
	"github.com/magabrotheeeer/bankrot-course/internal/storage"
)

const purchaseColumns = `id, user_id, amount, payment_status, payment_id, product_type, expires_at, created_at`

func scanPurchase(row interface{ Scan(...any) error }) (*models.Purchase, error) {
	p := &models.Purchase{}
	var expires sql.NullTime
	if err := row.Scan(&p.ID, &p.UserID, &p.Amount, &p.Status, &p.PaymentID, &p.ProductType, &expires, &p.CreatedAt); err != nil {
		return nil, err
	}
	if expires.Valid {
		t := expires.Time
		p.ExpiresAt = &t
	}
	return p, nil
}

// CreatePendingPurchase сохраняет ожидающую покупку. Повторная запись с тем же
// payment_id не создает дубль: возвращается уже существующая запись.
func (s *Storage) CreatePendingPurchase(ctx context.Context, p models.Purchase) (*models.Purchase, error) {
	const op = "storage.CreatePendingPurchase"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	productType := p.ProductType
	if productType == "" {
		productType = models.ProductCourse
	}

	query := `INSERT INTO user_purchases (user_id, amount, payment_status, payment_id, product_type)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (payment_id) DO NOTHING
			  RETURNING ` + purchaseColumns
	created, err := scanPurchase(s.conn(ctx).QueryRowContext(ctx, query,
		p.UserID, p.Amount, models.PurchasePending, p.PaymentID, productType))
	if err == nil {
		return created, nil
	}
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("%s: user %d: %w", op, p.UserID, storage.ErrNotFound)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	existing, err := scanPurchase(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+purchaseColumns+` FROM user_purchases WHERE payment_id = $1`, p.PaymentID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return existing, nil
}

// GetPurchaseByPaymentID возвращает покупку по идентификатору платежа.
func (s *Storage) GetPurchaseByPaymentID(ctx context.Context, paymentID string) (*models.Purchase, error) {
	const op = "storage.GetPurchaseByPaymentID"
	return s.getPurchase(ctx, op, `SELECT `+purchaseColumns+` FROM user_purchases WHERE payment_id = $1`, paymentID)
}

// GetPurchaseByPaymentIDForUpdate как GetPurchaseByPaymentID, но блокирует
// строку до конца транзакции.
func (s *Storage) GetPurchaseByPaymentIDForUpdate(ctx context.Context, paymentID string) (*models.Purchase, error) {
	const op = "storage.GetPurchaseByPaymentIDForUpdate"
	return s.getPurchase(ctx, op, `SELECT `+purchaseColumns+` FROM user_purchases WHERE payment_id = $1 FOR UPDATE`, paymentID)
}

func (s *Storage) getPurchase(ctx context.Context, op, query string, paymentID string) (*models.Purchase, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	p, err := scanPurchase(s.conn(ctx).QueryRowContext(ctx, query, paymentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// LatestCompletedExpiry возвращает самую позднюю дату окончания доступа среди
// подтвержденных покупок пользователя. Если таких покупок нет, возвращает nil.
func (s *Storage) LatestCompletedExpiry(ctx context.Context, userID int64, productType string) (*time.Time, error) {
	const op = "storage.LatestCompletedExpiry"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var latest sql.NullTime
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT MAX(expires_at) FROM user_purchases
		 WHERE user_id = $1 AND product_type = $2 AND payment_status = $3`,
		userID, productType, models.PurchaseCompleted).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !latest.Valid {
		return nil, nil
	}
	return &latest.Time, nil
}

// CompletePurchase переводит ожидающую покупку в completed с датой окончания
// доступа. Уже подтвержденная покупка не меняется, тогда возвращается false.
func (s *Storage) CompletePurchase(ctx context.Context, id int64, expiresAt time.Time) (bool, error) {
	const op = "storage.CompletePurchase"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE user_purchases
		 SET payment_status = $1, expires_at = $2, updated_at = NOW()
		 WHERE id = $3 AND payment_status = $4`,
		models.PurchaseCompleted, expiresAt, id, models.PurchasePending)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}
