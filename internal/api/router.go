package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/opengeos/opera-layer-service/internal/metrics"
)

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(h *Handlers, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestIDResponse)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(Recovery(logger))
	r.Use(middleware.Compress(5))
	r.Use(ContentTypeJSON)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Get("/", h.Root)

	r.Get("/products", h.Products)
	r.Get("/products/{productId}", h.Product)

	r.Route("/search", func(r chi.Router) {
		r.Get("/", h.Search)
		r.Post("/", h.Search)
	})

	r.Get("/granules/{granuleId}", h.Granule)
	r.Get("/granules/{granuleId}/stac", h.GranuleSTAC)

	r.Post("/footprints", h.Footprints)
	r.Post("/layers", h.Layer)
	r.Post("/mosaic", h.Mosaic)

	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.Settings)
		r.Put("/", h.UpdateSettings)
		r.Get("/colormaps", h.Colormaps)
		r.Post("/credentials", h.SaveCredentials)
		r.Post("/credentials/verify", h.VerifyCredentials)
	})

	r.Get("/cache", h.CacheStats)
	r.Delete("/cache", h.ClearCache)

	r.Get("/updates/check", h.CheckUpdates)

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, "endpoint not found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed")
	})

	return r
}
