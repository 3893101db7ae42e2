// Package paymentprovider клиент REST API ЮKassa v3.
package paymentprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/magabrotheeeer/bankrot-course/internal/config"
)

// ErrUnexpectedStatus ЮKassa ответила статусом не 2xx.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Client клиент ЮKassa с Basic-авторизацией shopID:secretKey.
type Client struct {
	shopID     string
	secretKey  string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт новый клиент ЮKassa.
func NewClient(cfg config.YooKassa) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		shopID:     cfg.ShopID,
		secretKey:  cfg.SecretKey,
		apiURL:     cfg.APIURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s: %s", ErrUnexpectedStatus, resp.Status, bytes.TrimSpace(detail))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CreatePayment создает платеж. idempotenceKey передается в заголовке
// Idempotence-Key, повтор с тем же ключом вернет тот же платеж.
func (c *Client) CreatePayment(ctx context.Context, reqParams CreatePaymentRequest, idempotenceKey string) (*Payment, error) {
	const op = "paymentprovider.CreatePayment"
	req, err := c.newRequest(ctx, http.MethodPost, "/payments", reqParams)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Idempotence-Key", idempotenceKey)

	var payment Payment
	if err := c.do(req, &payment); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &payment, nil
}

// GetPayment возвращает текущее состояние платежа.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	const op = "paymentprovider.GetPayment"
	req, err := c.newRequest(ctx, http.MethodGet, "/payments/"+paymentID, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var payment Payment
	if err := c.do(req, &payment); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &payment, nil
}
