// Package middlewarectx содержит HTTP middleware сервиса курса.
//
// AuthMiddleware проверяет JWT из заголовка X-Auth-Token или Authorization: Bearer
// и кладет claims в контекст запроса. AdminOnly пропускает только администраторов.
package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/bankrot-course/internal/http/response"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/jwt"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// Claims ключ claims токена в контексте.
const Claims Key = "claims"

// TokenHeader заголовок с токеном пользователя.
const TokenHeader = "X-Auth-Token"

// TokenValidator проверяет токен и возвращает его claims.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*jwt.CustomClaims, error)
}

// TokenFromRequest достает токен из X-Auth-Token или из Authorization: Bearer.
func TokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(TokenHeader)); token != "" {
		return token
	}
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// ClaimsFromContext возвращает claims, положенные AuthMiddleware.
func ClaimsFromContext(ctx context.Context) (*jwt.CustomClaims, bool) {
	claims, ok := ctx.Value(Claims).(*jwt.CustomClaims)
	return claims, ok && claims != nil
}

// AuthMiddleware возвращает middleware, которое пропускает запрос только с валидным токеном.
func AuthMiddleware(validator TokenValidator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.AuthMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			claims, err := validator.ValidateToken(r.Context(), TokenFromRequest(r))
			if err != nil {
				log.Warn("unauthorized request", sl.Err(err))
				response.JSON(w, r, http.StatusUnauthorized, response.Error(err.Error()))
				return
			}
			ctx := context.WithValue(r.Context(), Claims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ErrAdminRequired запрос к админскому маршруту без прав администратора.
var ErrAdminRequired = errors.New("Admin access required")

// AdminOnly пропускает запрос, только если в claims стоит is_admin.
// Должен стоять после AuthMiddleware.
func AdminOnly(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				response.JSON(w, r, http.StatusUnauthorized, response.Error("No token provided"))
				return
			}
			if !claims.IsAdmin {
				log.Warn("non-admin access denied",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.Int64("user_id", claims.UserID))
				response.JSON(w, r, http.StatusForbidden, response.Error(ErrAdminRequired.Error()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
