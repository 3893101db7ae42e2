package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type healthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

func TestHandler(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		checks     map[string]Pinger
		wantStatus int
		wantBody   healthResponse
	}{
		{
			name:       "all ok",
			checks:     map[string]Pinger{"database": ok, "redis": ok},
			wantStatus: http.StatusOK,
			wantBody:   healthResponse{Status: "ok", Components: map[string]string{"database": "ok", "redis": "ok"}},
		},
		{
			name:       "redis down",
			checks:     map[string]Pinger{"database": ok, "redis": down},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   healthResponse{Status: "degraded", Components: map[string]string{"database": "ok", "redis": "down"}},
		},
		{
			name:       "nil check skipped",
			checks:     map[string]Pinger{"database": ok, "redis": nil},
			wantStatus: http.StatusOK,
			wantBody:   healthResponse{Status: "ok", Components: map[string]string{"database": "ok"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			New(newNoopLogger(), tt.checks).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var got healthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.wantBody, got)
		})
	}
}
