package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/krishna-platform/quotad/internal/database"
	mw "github.com/krishna-platform/quotad/internal/middleware"
	inats "github.com/krishna-platform/quotad/internal/nats"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Quota handlers
	QuotaStatus  http.HandlerFunc
	ConsumeQuota http.HandlerFunc

	// Subscription handlers
	UpsertSubscription http.HandlerFunc
	GetSubscription    http.HandlerFunc

	// Middleware
	AuthMiddleware  func(http.Handler) http.Handler
	QuotaMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
}

func NewRouter(pool *pgxpool.Pool, redisClient *redis.Client, natsClient *inats.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe — always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe — checks DB, Redis, NATS. A Redis outage only marks
	// the service degraded: quota checks fail open without it.
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"redis":    "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			health["redis"] = "unhealthy"
			health["status"] = "degraded"
		}

		if natsClient != nil && !natsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
		} else if natsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			// Quota status is free to call: reading usage never consumes it.
			r.Get("/quota", h.QuotaStatus)

			r.Route("/subscriptions", func(r chi.Router) {
				r.Get("/me", h.GetSubscription)
				r.Put("/{userID}", h.UpsertSubscription)
			})

			// Metered routes sit behind the quota middleware.
			r.Group(func(r chi.Router) {
				r.Use(h.QuotaMiddleware)
				r.Post("/consume", h.ConsumeQuota)
			})
		})
	})

	return r
}
