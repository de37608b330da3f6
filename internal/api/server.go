package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/SaiAnoop/aqua-harvestPro/internal/assessment"
	"github.com/SaiAnoop/aqua-harvestPro/internal/domain"
	"github.com/SaiAnoop/aqua-harvestPro/internal/regions"
	"github.com/SaiAnoop/aqua-harvestPro/internal/subsidies"
	"github.com/SaiAnoop/aqua-harvestPro/internal/validation"
	"github.com/SaiAnoop/aqua-harvestPro/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Services bundles the backends and domain services the handlers use.
// Repo, Cache and Bus may be nil.
type Services struct {
	Repo       domain.Repository
	Cache      domain.Cache
	Bus        domain.EventBus
	Validator  *validation.Validator
	Regions    *regions.Service
	Subsidies  *subsidies.Engine
	Assessment *assessment.Service
	Worker     *worker.Worker
}

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	metrics *Metrics
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, limits domain.RateLimitConfig, svc Services, version string) *Server {
	metrics := NewMetrics()
	handler := NewHandler(svc, metrics, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(metrics.Middleware)     // Prometheus request metrics
	router.Use(middleware.Compress(5)) // Gzip compression

	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	limit := RateLimitMiddleware(svc.Cache, limits)

	// Assessments
	router.Get("/demo-input", handler.DemoInput)
	router.Get("/assessments/demo", handler.DemoAssessment)
	router.With(limit).Post("/assessments", handler.Assess)
	router.With(limit).Post("/intake/{step}/validate", handler.ValidateStep)

	// Reference data
	router.Route("/regions", func(r chi.Router) {
		r.Get("/", handler.ListRegions)
		r.Get("/{code}", handler.GetRegion)
		r.Put("/{code}", handler.OverrideRegion)
		r.Delete("/{code}", handler.ResetRegion)
		r.Get("/{code}/sources", handler.RegionSources)
	})

	// Subsidy schemes
	router.Route("/subsidies", func(r chi.Router) {
		r.Get("/", handler.ListSubsidies)
		r.With(limit).Post("/", handler.CreateSubsidy)
		r.With(limit).Post("/reload", handler.ReloadSubsidies)
		r.Get("/{id}", handler.GetSubsidy)
		r.Delete("/{id}", handler.DeleteSubsidy)
	})

	return &Server{
		router:  router,
		metrics: metrics,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
