package paymentprovider

import "time"

// Статусы платежа ЮKassa.
const (
	StatusPending           = "pending"
	StatusWaitingForCapture = "waiting_for_capture"
	StatusSucceeded         = "succeeded"
	StatusCanceled          = "canceled"
)

// EventPaymentSucceeded событие webhook об успешной оплате.
const EventPaymentSucceeded = "payment.succeeded"

// Amount денежная сумма. Value передается строкой, например "2999.00".
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// Confirmation способ подтверждения платежа.
type Confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

// Customer покупатель в чеке.
type Customer struct {
	Email string `json:"email,omitempty"`
}

// ReceiptItem позиция чека.
type ReceiptItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	Amount      Amount `json:"amount"`
	VatCode     int    `json:"vat_code"`
}

// Receipt данные для формирования чека по 54-ФЗ.
type Receipt struct {
	Customer Customer      `json:"customer"`
	Items    []ReceiptItem `json:"items"`
}

// CreatePaymentRequest запрос на создание платежа.
type CreatePaymentRequest struct {
	Amount       Amount            `json:"amount"`
	Capture      bool              `json:"capture"`
	Confirmation Confirmation      `json:"confirmation"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Receipt      *Receipt          `json:"receipt,omitempty"`
}

// Payment объект платежа в ответах API.
type Payment struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Paid         bool              `json:"paid"`
	Amount       Amount            `json:"amount"`
	Confirmation *Confirmation     `json:"confirmation,omitempty"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// ConfirmationURL возвращает ссылку на страницу оплаты, если она есть.
func (p *Payment) ConfirmationURL() string {
	if p.Confirmation == nil {
		return ""
	}
	return p.Confirmation.ConfirmationURL
}

// Notification тело webhook-уведомления ЮKassa.
type Notification struct {
	Type   string  `json:"type"`
	Event  string  `json:"event"`
	Object Payment `json:"object"`
}
