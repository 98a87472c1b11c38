// Package server assembles the HTTP router.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/nicevod/service/internal/auth"
	"github.com/nicevod/service/internal/metrics"
	appMiddleware "github.com/nicevod/service/internal/middleware"
	"github.com/nicevod/service/internal/response"
	"github.com/nicevod/service/internal/shortlink"
	"github.com/nicevod/service/internal/upload"

	_ "github.com/nicevod/service/docs/swagger"
)

// Deps are the handlers and policies the router wires together.
type Deps struct {
	// Verifier resolves bearer tokens. Nil disables authentication.
	Verifier auth.Verifier
	Uploads  *upload.Handler
	// Links is nil when no database is configured.
	Links      *shortlink.Handler
	AdminToken string
}

// NewRouter returns the service's chi router.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(appMiddleware.CORS())
	// Bare OPTIONS requests that carry no preflight headers.
	r.Use(appMiddleware.AnswerOptions)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	// Swagger UI at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Get("/upload", d.Uploads.Ping)
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.RequireIdentity(d.Verifier))
		r.Post("/upload", d.Uploads.Upload)
		r.Post("/delete", d.Uploads.Delete)
		r.Get("/usage", d.Uploads.Usage)
	})

	if d.Links != nil {
		r.Get("/s/{code}", d.Links.Redirect)
		r.With(appMiddleware.RequireAdminToken(d.AdminToken)).Post("/api/shorten", d.Links.Create)
	}

	return r
}
