package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/bankrot-course/internal/models"
	"github.com/magabrotheeeer/bankrot-course/internal/services/auth"
	"github.com/magabrotheeeer/bankrot-course/internal/services/sender"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendDirect(ctx context.Context, msg models.AdminNotification) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type MockCredentials struct {
	mock.Mock
}

func (m *MockCredentials) ResendCredentials(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newRequest(method, target string, body []byte) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	return req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))
}

func TestHandler_Notify(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setupMock  func(*MockNotifier)
		wantStatus int
		wantError  string
	}{
		{
			name: "success with default type",
			body: `{"subject":"Отчет","message":"Все хорошо"}`,
			setupMock: func(m *MockNotifier) {
				m.On("SendDirect", mock.Anything, models.AdminNotification{
					Type:    models.NotificationGeneral,
					Subject: "Отчет",
					Message: "Все хорошо",
				}).Return(nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing subject",
			body:       `{"message":"x"}`,
			setupMock:  func(*MockNotifier) {},
			wantStatus: http.StatusBadRequest,
			wantError:  "field Subject is a required field",
		},
		{
			name:       "invalid json",
			body:       `{"subject":`,
			setupMock:  func(*MockNotifier) {},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request body",
		},
		{
			name: "smtp not configured",
			body: `{"type":"payment","subject":"s","message":"m"}`,
			setupMock: func(m *MockNotifier) {
				m.On("SendDirect", mock.Anything, mock.Anything).
					Return(fmt.Errorf("notifier.SendDirect: %w", sender.ErrNotConfigured))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  "SMTP configuration missing",
		},
		{
			name: "smtp failure",
			body: `{"subject":"s","message":"m"}`,
			setupMock: func(m *MockNotifier) {
				m.On("SendDirect", mock.Anything, mock.Anything).Return(errors.New("dial tcp: refused"))
			},
			wantStatus: http.StatusBadGateway,
			wantError:  "Failed to send email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := new(MockNotifier)
			tt.setupMock(notifier)

			rec := httptest.NewRecorder()
			New(newNoopLogger(), notifier, new(MockCredentials)).
				Notify(rec, newRequest(http.MethodPost, "/api/v1/admin/notify", []byte(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, resp["error"])
			} else {
				assert.Equal(t, true, resp["success"])
			}
			notifier.AssertExpectations(t)
		})
	}
}

func TestHandler_ResendCredentials(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{name: "success", body: `{"email":"user@example.com"}`, wantStatus: http.StatusOK},
		{name: "email required", body: `{"email":""}`, err: auth.ErrEmailRequired, wantStatus: http.StatusBadRequest},
		{name: "user not found", body: `{"email":"ghost@example.com"}`, err: auth.ErrUserNotFound, wantStatus: http.StatusNotFound},
		{name: "internal", body: `{"email":"user@example.com"}`, err: errors.New("db down"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req ResendRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))

			creds := new(MockCredentials)
			creds.On("ResendCredentials", mock.Anything, req.Email).Return(tt.err)

			rec := httptest.NewRecorder()
			New(newNoopLogger(), new(MockNotifier), creds).
				ResendCredentials(rec, newRequest(http.MethodPost, "/api/v1/admin/resend-credentials", []byte(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			creds.AssertExpectations(t)
		})
	}
}
