package models

import "time"

// Статусы покупки.
const (
	PurchasePending   = "pending"
	PurchaseCompleted = "completed"
)

// ProductCourse тип продукта по умолчанию.
const ProductCourse = "course"

// Purchase запись об оплате доступа к продукту.
// ExpiresAt заполняется при подтверждении оплаты.
type Purchase struct {
	ID          int64
	UserID      int64
	Amount      float64
	Status      string
	PaymentID   string
	ProductType string
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}

// Completed сообщает, подтверждена ли покупка.
func (p *Purchase) Completed() bool {
	return p.Status == PurchaseCompleted
}
