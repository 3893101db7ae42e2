package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/bankrot-course/internal/lib/jwt"
	"github.com/magabrotheeeer/bankrot-course/internal/models"
	authsvc "github.com/magabrotheeeer/bankrot-course/internal/services/auth"
)

type AuthServiceMock struct {
	mock.Mock
}

func (m *AuthServiceMock) Register(ctx context.Context, email, password, fullName, telegramUsername string) (*authsvc.Session, error) {
	args := m.Called(ctx, email, password, fullName, telegramUsername)
	resp, _ := args.Get(0).(*authsvc.Session)
	return resp, args.Error(1)
}

func (m *AuthServiceMock) Login(ctx context.Context, email, password string) (*authsvc.Session, error) {
	args := m.Called(ctx, email, password)
	resp, _ := args.Get(0).(*authsvc.Session)
	return resp, args.Error(1)
}

func (m *AuthServiceMock) ValidateToken(ctx context.Context, token string) (*jwt.CustomClaims, error) {
	args := m.Called(ctx, token)
	resp, _ := args.Get(0).(*jwt.CustomClaims)
	return resp, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestAuthHandler_Post(t *testing.T) {
	session := &authsvc.Session{
		Token: "tok",
		User:  models.PublicUser{ID: 1, Email: "user@example.com", FullName: "Иван"},
	}

	tests := []struct {
		name           string
		requestBody    string
		setup          func(m *AuthServiceMock)
		wantStatusCode int
		wantError      string
		wantToken      string
	}{
		{
			name:        "register",
			requestBody: `{"action":"register","email":"user@example.com","password":"secret1","full_name":"Иван"}`,
			setup: func(m *AuthServiceMock) {
				m.On("Register", mock.Anything, "user@example.com", "secret1", "Иван", "").Return(session, nil).Once()
			},
			wantStatusCode: http.StatusCreated,
			wantToken:      "tok",
		},
		{
			name:        "register duplicate",
			requestBody: `{"action":"register","email":"user@example.com","password":"secret1","full_name":"Иван"}`,
			setup: func(m *AuthServiceMock) {
				m.On("Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(nil, authsvc.ErrUserExists).Once()
			},
			wantStatusCode: http.StatusConflict,
			wantError:      "User with this email already exists",
		},
		{
			name:        "register missing fields",
			requestBody: `{"action":"register","email":"user@example.com"}`,
			setup: func(m *AuthServiceMock) {
				m.On("Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(nil, authsvc.ErrMissingFields).Once()
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "Email, password and full_name are required",
		},
		{
			name:        "login",
			requestBody: `{"action":"login","email":"user@example.com","password":"secret1"}`,
			setup: func(m *AuthServiceMock) {
				m.On("Login", mock.Anything, "user@example.com", "secret1").Return(session, nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantToken:      "tok",
		},
		{
			name:        "login bad password",
			requestBody: `{"action":"login","email":"user@example.com","password":"nope"}`,
			setup: func(m *AuthServiceMock) {
				m.On("Login", mock.Anything, "user@example.com", "nope").Return(nil, authsvc.ErrInvalidCredentials).Once()
			},
			wantStatusCode: http.StatusUnauthorized,
			wantError:      "Invalid credentials",
		},
		{
			name:        "internal error",
			requestBody: `{"action":"login","email":"user@example.com","password":"secret1"}`,
			setup: func(m *AuthServiceMock) {
				m.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()
			},
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "Internal server error",
		},
		{
			name:           "unknown action",
			requestBody:    `{"action":"logout"}`,
			setup:          func(_ *AuthServiceMock) {},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "Invalid action",
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			setup:          func(_ *AuthServiceMock) {},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "Invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(AuthServiceMock)
			tt.setup(svc)
			handler := New(newNoopLogger(), svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth", bytes.NewBufferString(tt.requestBody))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			var got map[string]any
			assert.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
			} else {
				assert.Nil(t, got["error"])
				assert.Equal(t, tt.wantToken, got["token"])
				user, ok := got["user"].(map[string]any)
				assert.True(t, ok)
				assert.Equal(t, "user@example.com", user["email"])
				assert.NotContains(t, user, "password_hash")
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestAuthHandler_Validate(t *testing.T) {
	tests := []struct {
		name           string
		header         string
		mockClaims     *jwt.CustomClaims
		mockErr        error
		wantStatusCode int
		wantBody       string
	}{
		{
			name:           "valid",
			header:         "good",
			mockClaims:     &jwt.CustomClaims{UserID: 3, Email: "a@b.c", FullName: "А", IsAdmin: true},
			wantStatusCode: http.StatusOK,
			wantBody:       `{"valid":true,"user":{"id":3,"email":"a@b.c","full_name":"А","is_admin":true}}`,
		},
		{
			name:           "no token",
			header:         "",
			mockErr:        authsvc.ErrNoToken,
			wantStatusCode: http.StatusUnauthorized,
			wantBody:       `{"error":"No token provided"}`,
		},
		{
			name:           "expired",
			header:         "old",
			mockErr:        authsvc.ErrTokenExpired,
			wantStatusCode: http.StatusUnauthorized,
			wantBody:       `{"error":"Token expired"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(AuthServiceMock)
			svc.On("ValidateToken", mock.Anything, tt.header).Return(tt.mockClaims, tt.mockErr).Once()

			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth", nil)
			if tt.header != "" {
				req.Header.Set("X-Auth-Token", tt.header)
			}
			rec := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}
