package router

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/loopwork-studio/agency-api/internal/auth"
	"github.com/loopwork-studio/agency-api/internal/config"
	"github.com/loopwork-studio/agency-api/internal/database"
	"github.com/loopwork-studio/agency-api/internal/http/handler"
	"github.com/loopwork-studio/agency-api/internal/http/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/loopwork-studio/agency-api/docs" // Import generated swagger docs
)

// ReadinessCheck reports whether an optional dependency (redis, blob storage) is usable
type ReadinessCheck func(ctx context.Context) error

// Handlers groups the HTTP handlers mounted under /api/v1
type Handlers struct {
	Invoice       *handler.InvoiceHandler
	Deliverable   *handler.DeliverableHandler
	Reimbursement *handler.ReimbursementHandler
	Return        *handler.ReturnHandler
	Activity      *handler.ActivityHandler
	Auth          *handler.AuthHandler
}

type Router struct {
	cfg             *config.Config
	logger          *zap.Logger
	db              *gorm.DB
	authMiddleware  *auth.Middleware
	rateLimiter     *middleware.RateLimiter
	metricsHandler  http.Handler
	readinessChecks map[string]ReadinessCheck
	handlers        Handlers
}

// NewRouter wires the middleware stack and routes. metricsHandler may be nil.
func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	metricsHandler http.Handler,
	readinessChecks map[string]ReadinessCheck,
	handlers Handlers,
) *Router {
	return &Router{
		cfg:             cfg,
		logger:          logger,
		db:              db,
		authMiddleware:  authMiddleware,
		rateLimiter:     rateLimiter,
		metricsHandler:  metricsHandler,
		readinessChecks: readinessChecks,
		handlers:        handlers,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	// Liveness
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/health/db", rt.databaseHealth)
	r.Get("/health/ready", rt.readiness)

	if rt.cfg.Server.EnableMetrics && rt.metricsHandler != nil {
		r.Handle("/metrics", rt.metricsHandler)
	}

	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	h := rt.handlers
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authMiddleware.Authenticate)

		r.Get("/auth/me", h.Auth.Me)

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.Invoice.List)
			r.Get("/{id}", h.Invoice.GetByID)
			r.Get("/{id}/payments", h.Invoice.ListPayments)

			r.Group(func(r chi.Router) {
				r.Use(rt.authMiddleware.RequireAgency)
				r.Post("/", h.Invoice.Create)
				r.Post("/import", h.Invoice.Import)
				r.Patch("/{id}", h.Invoice.Update)
				r.Delete("/{id}", h.Invoice.Delete)
				r.Post("/{id}/send", h.Invoice.Send)
				r.Post("/{id}/void", h.Invoice.Void)
			})

			r.With(rt.authMiddleware.RequireAdmin).Post("/sync", h.Invoice.Sync)
		})

		r.Route("/projects/{id}", func(r chi.Router) {
			r.Get("/activity", h.Activity.ListForProject)
			r.With(rt.authMiddleware.RequireAgency).Post("/invoices/generate", h.Invoice.GenerateForProject)
		})

		r.Route("/deliverables", func(r chi.Router) {
			r.Get("/", h.Deliverable.List)
			r.Post("/", h.Deliverable.Create)
			r.Get("/{id}", h.Deliverable.GetByID)
			r.Patch("/{id}", h.Deliverable.Update)
			r.Delete("/{id}", h.Deliverable.Delete)

			r.Post("/{id}/submit", h.Deliverable.Submit)
			r.Post("/{id}/approve", h.Deliverable.Approve)
			r.Post("/{id}/reject", h.Deliverable.Reject)
			r.Post("/{id}/finalize", h.Deliverable.Finalize)

			r.Get("/{id}/versions", h.Deliverable.ListVersions)
			r.Post("/{id}/versions", h.Deliverable.CreateVersion)
			r.Post("/{id}/versions/upload", h.Deliverable.UploadVersion)

			r.Get("/{id}/comments", h.Deliverable.ListComments)
			r.Post("/{id}/comments", h.Deliverable.AddComment)
		})

		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.RequireAgency)

			r.Route("/reimbursements", func(r chi.Router) {
				r.Get("/", h.Reimbursement.List)
				r.Post("/", h.Reimbursement.Create)
				r.Get("/{id}", h.Reimbursement.GetByID)
				r.Patch("/{id}", h.Reimbursement.Update)
				r.Delete("/{id}", h.Reimbursement.Delete)
			})

			r.Route("/returns", func(r chi.Router) {
				r.Get("/", h.Return.List)
				r.Post("/", h.Return.Create)
				r.Get("/{id}", h.Return.GetByID)
				r.Patch("/{id}", h.Return.Update)
				r.Delete("/{id}", h.Return.Delete)
			})
		})
	})

	return r
}

func (rt *Router) databaseHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := database.HealthCheckWithStats(r.Context(), rt.db)
	if err != nil {
		rt.logger.Error("Database health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"error":   err.Error(),
			"service": "database",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "database",
		"stats": map[string]interface{}{
			"max_open_connections": stats.MaxOpenConnections,
			"open_connections":     stats.OpenConnections,
			"in_use":               stats.InUse,
			"idle":                 stats.Idle,
			"wait_count":           stats.WaitCount,
			"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
			"max_idle_closed":      stats.MaxIdleClosed,
			"max_lifetime_closed":  stats.MaxLifetimeClosed,
		},
	})
}

// readiness checks the database plus every registered dependency
func (rt *Router) readiness(w http.ResponseWriter, r *http.Request) {
	checks := map[string]ReadinessCheck{
		"database": func(ctx context.Context) error { return database.HealthCheck(ctx, rt.db) },
	}
	for name, check := range rt.readinessChecks {
		checks[name] = check
	}

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]interface{}, len(checks))
	allHealthy := true
	for _, name := range names {
		if err := checks[name](r.Context()); err != nil {
			rt.logger.Error("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			results[name] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
			allHealthy = false
			continue
		}
		results[name] = map[string]interface{}{"status": "healthy"}
	}

	status, code := "healthy", http.StatusOK
	if !allHealthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": results,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
