package middlewarectx

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

var (
	corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	corsHeaders = []string{"Content-Type", "X-Auth-Token", "Authorization", "Idempotence-Key"}
)

const corsMaxAge = 86400

// CORS разрешает запросы с любых источников. Любой OPTIONS получает 200 с
// заголовками preflight, даже без Access-Control-Request-Method.
func CORS() func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: corsMethods,
		AllowedHeaders: corsHeaders,
		MaxAge:         corsMaxAge,
	})
	return func(next http.Handler) http.Handler {
		return c.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", "*")
			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", strings.Join(corsMethods, ", "))
				h.Set("Access-Control-Allow-Headers", strings.Join(corsHeaders, ", "))
				h.Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
