/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client IP from proxy headers (rate limiting keys on it)
  3. Logger:     zap access log
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/auth/login    Public, rate limited
  /api/leave-types   Public
  /api/*             Bearer token required
  /api/* (HRD)       Bearer token with the hrd role
  /metrics           Prometheus scrape endpoint
  /healthz           Liveness and storage check

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Authenticate and RequireRole
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/logger"
)

// RouterConfig carries the router's collaborators besides the Handler.
// A nil LoginLimiter disables rate limiting; a nil Gatherer hides /metrics.
type RouterConfig struct {
	AllowedOrigins []string
	LoginLimiter   *limiter.Limiter
	Gatherer       prometheus.Gatherer
	Logger         *zap.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Healthz)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if cfg.LoginLimiter != nil {
				r.Use(RateLimit(cfg.LoginLimiter, log))
			}
			r.Post("/auth/login", h.Login)
		})

		r.Get("/leave-types", h.ListLeaveTypes)

		r.Group(func(r chi.Router) {
			r.Use(h.Authenticate)

			// Employee routes
			r.Route("/employees", func(r chi.Router) {
				r.Get("/", h.ListEmployees)
				r.With(RequireRole(leave.RoleHRD)).Post("/", h.CreateEmployee)
				r.Get("/{id}", h.GetEmployee)
				r.Get("/{id}/balance", h.GetBalance)
			})

			// Leave request routes
			r.Route("/leave-requests", func(r chi.Router) {
				r.Get("/", h.ListLeaveRequests)
				r.Post("/", h.SubmitLeaveRequest)
				r.Post("/validate", h.ValidateLeaveRequest)
				r.Post("/analysis", h.AnalyzeLeaveRequest)
				r.Get("/{id}", h.GetLeaveRequest)

				r.Group(func(r chi.Router) {
					r.Use(RequireRole(leave.RoleHRD))
					r.Post("/{id}/approve", h.ApproveLeaveRequest)
					r.Post("/{id}/reject", h.RejectLeaveRequest)
				})
			})

			r.Get("/stats", h.GetStats)

			// HR routes
			r.Group(func(r chi.Router) {
				r.Use(RequireRole(leave.RoleHRD))
				r.Get("/audit", h.ListAudit)
				r.Get("/reports/leave-requests.xlsx", h.DownloadReport)
			})
		})
	})

	return r
}
