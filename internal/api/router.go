package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sealbox-protocol/sealbox/internal/api/middleware"
	"github.com/sealbox-protocol/sealbox/internal/config"
	"github.com/sealbox-protocol/sealbox/internal/handlers"
)

// NewRouter creates and configures the HTTP router. redisClient may be nil,
// which disables rate limiting (development setups).
func NewRouter(logger zerolog.Logger, cfg *config.Config, h *handlers.Handler, redisClient *redis.Client) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(64 * 1024)) // group params + ciphertext fit well under 64KB
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	if redisClient != nil {
		limiter := middleware.NewRateLimiter(redisClient, logger, cfg.RateLimitWhitelist)
		r.Use(limiter.Middleware)
	}

	// CORS - the UI and the relay run on different origins
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.HeaderUser, middleware.HeaderRole},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	// Authenticated routes (gateway identity required)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Post("/exchange/sessions", h.CreateSession)
		r.Get("/exchange/sessions", h.ListMySessions)
		r.Get("/exchange/sessions/{id}", h.GetSession)
		r.Post("/exchange/sessions/{id}/keys", h.SubmitKey)
		r.Post("/exchange/sessions/{id}/messages", h.SendMessage)
		r.Get("/exchange/sessions/{id}/messages", h.GetMessages)

		r.Get("/events", h.Events)
	})

	// Privileged routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(cfg.AdminTokenHash))

		r.Post("/admin/cleanup", h.Cleanup)
		r.Get("/admin/stats", h.Stats)
	})

	return r
}
