package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

var (
	corsMethods = []string{http.MethodPost, http.MethodOptions, http.MethodGet}
	corsHeaders = []string{"Content-Type", "Authorization"}
)

// CORS returns the permissive cross-origin policy every endpoint shares.
func CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: corsMethods,
		AllowedHeaders: corsHeaders,
		MaxAge:         300,
	})
}

// Preflight answers a bare OPTIONS request with the CORS headers and 204.
// cors.Handler only answers requests carrying Access-Control-Request-Method.
func Preflight(w http.ResponseWriter, _ *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", strings.Join(corsMethods, ", "))
	h.Set("Access-Control-Allow-Headers", strings.Join(corsHeaders, ", "))
	w.WriteHeader(http.StatusNoContent)
}

// AnswerOptions ends every OPTIONS request that reaches it with Preflight, so
// routes never need their own OPTIONS handlers.
func AnswerOptions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			Preflight(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
