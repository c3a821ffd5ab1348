package routers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"codraw/internal/api"
	"codraw/internal/metrics"
)

func New(h *api.Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
	)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.Use(metrics.Middleware)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", metrics.Handler())

	// Timeout would kill the long-lived websocket, so it only wraps the
	// plain API routes.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Get("/status", h.Status)
	})

	r.Get("/ws", h.HubWS)

	return r
}
