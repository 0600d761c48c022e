package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the HTTP surface: forecast reads, saved selections,
// the cache-warm hook, and the health check.
func NewRouter(spots *SpotsHandler, saved *SavedHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Route("/spots", func(r chi.Router) {
		r.Get("/", spots.HandleList)
		r.Get("/nearby", spots.HandleNearby)
		r.Get("/search", spots.HandleSearch)
		r.Get("/{locationId}", spots.HandleSpot)
	})

	r.Route("/saved", func(r chi.Router) {
		r.Post("/", saved.HandleCreate)
		r.Get("/{userId}", saved.HandleList)
		r.Post("/{userId}/{sortKey}/acknowledge", saved.HandleAcknowledge)
		r.Delete("/{userId}/{sortKey}", saved.HandleDelete)
	})

	r.Post("/internal/cache/warm", spots.HandleWarm)
	r.Get("/healthz", handleHealth)

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger emits one structured line per request.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
