// AquaHarvest - rainwater harvesting feasibility estimates over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SaiAnoop/aqua-harvestPro/internal/api"
	"github.com/SaiAnoop/aqua-harvestPro/internal/assessment"
	"github.com/SaiAnoop/aqua-harvestPro/internal/bus"
	"github.com/SaiAnoop/aqua-harvestPro/internal/cache"
	"github.com/SaiAnoop/aqua-harvestPro/internal/config"
	"github.com/SaiAnoop/aqua-harvestPro/internal/domain"
	"github.com/SaiAnoop/aqua-harvestPro/internal/regions"
	"github.com/SaiAnoop/aqua-harvestPro/internal/repository"
	"github.com/SaiAnoop/aqua-harvestPro/internal/subsidies"
	"github.com/SaiAnoop/aqua-harvestPro/internal/validation"
	"github.com/SaiAnoop/aqua-harvestPro/internal/worker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(config.NewLogger(cfg.Logging, os.Stdout))

	slog.Info("starting aquaharvest",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"async_worker", cfg.AsyncWorker,
	)

	if cfg.Tracing.Enabled {
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		slog.Info("trace context propagation enabled", "service", cfg.Tracing.ServiceName)
	}

	if err := run(cfg); err != nil {
		slog.Error("aquaharvest stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *domain.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type, "two_phase", cfg.Cache.EnableTwoPhase)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Reference data
	regionService := regions.NewService(repo, cacheImpl, busImpl, cfg.Regions.CacheTTL)
	if sub, err := regionService.Watch(ctx); err != nil {
		slog.Warn("failed to watch region updates", "error", err)
	} else {
		defer sub.Unsubscribe()
	}

	// Subsidy schemes: seed built-ins on first start, then load what is stored
	engine, err := subsidies.NewEngine(8)
	if err != nil {
		return fmt.Errorf("failed to initialize subsidy engine: %w", err)
	}
	defer engine.Close()

	schemes, err := subsidies.EnsureSchemes(ctx, repo)
	if err != nil {
		return fmt.Errorf("failed to load subsidy schemes: %w", err)
	}
	if err := engine.LoadSchemes(schemes); err != nil {
		return fmt.Errorf("failed to compile subsidy schemes: %w", err)
	}
	slog.Info("subsidy engine initialized", "schemes_count", engine.SchemesCount())

	v := validation.New()
	assessmentService := assessment.NewService(v, regionService, engine, busImpl)

	var asyncWorker *worker.Worker
	if cfg.AsyncWorker {
		asyncWorker = worker.NewWorker(busImpl, assessmentService)
		if err := asyncWorker.Start(worker.Config{}); err != nil {
			slog.Error("failed to start async worker", "error", err)
			asyncWorker = nil
		} else {
			slog.Info("async worker started", "topic", domain.TopicAssessmentRequest)
		}
	}

	srv := api.NewServer(cfg.Server, cfg.RateLimit, api.Services{
		Repo:       repo,
		Cache:      cacheImpl,
		Bus:        busImpl,
		Validator:  v,
		Regions:    regionService,
		Subsidies:  engine,
		Assessment: assessmentService,
		Worker:     asyncWorker,
	}, Version)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("aquaharvest is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)
	printBanner(cfg, Version)

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("aquaharvest shutdown complete")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  AquaHarvest - rainwater harvesting feasibility")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /assessments               - Assess an intake record")
	fmt.Println("    GET  /assessments/demo          - Assess the demo record")
	fmt.Println("    GET  /demo-input                - Demo intake record")
	fmt.Println("    POST /intake/{step}/validate    - Validate one wizard step")
	fmt.Println("    GET  /regions                   - List reference regions")
	fmt.Println("    PUT  /regions/{code}            - Override rainfall and tariff")
	fmt.Println("    GET  /regions/{code}/sources    - Reference data provenance")
	fmt.Println("    GET  /subsidies                 - List subsidy schemes")
	fmt.Println("    POST /subsidies                 - Add a subsidy scheme")
	fmt.Println("    POST /subsidies/reload          - Hot-reload schemes")
	fmt.Println("    GET  /health, /ready, /metrics  - Operations")
	fmt.Println()
}
