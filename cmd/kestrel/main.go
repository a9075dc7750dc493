// Kestrel - Learner submission validation that deploys in 60 seconds.

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

	"github.com/openlearn/kestrel/internal/api"
	"github.com/openlearn/kestrel/internal/bus"
	"github.com/openlearn/kestrel/internal/cache"
	"github.com/openlearn/kestrel/internal/domain"
	"github.com/openlearn/kestrel/internal/repository"
	"github.com/openlearn/kestrel/internal/rules"
	"github.com/openlearn/kestrel/internal/runner"
	"github.com/openlearn/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"workers", cfg.Runner.Workers,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize expression rule engine
	engine, err := rules.NewEngine()
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	// Load expression rules from database (builtin rules are always on;
	// expression rules are configured via POST /rules).
	if err := loadExprRulesFromDatabase(ctx, repo, engine); err != nil {
		slog.Error("failed to load expression rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized",
		"builtin_rules", len(rules.BuiltinRules())+len(rules.BuiltinBatchRules()),
		"expression_rules", engine.RulesCount(),
	)

	// Initialize validation service and build reference indices
	service := runner.NewService(repo, cacheImpl, busImpl, engine, cfg.Runner.Workers, Version)
	if diags, err := service.LoadReferenceData(ctx); err != nil {
		slog.Error("failed to load reference data", "error", err)
		os.Exit(1)
	} else if len(diags) > 0 {
		slog.Warn("reference data loaded with diagnostics", "sources_affected", len(diags))
	}

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("KESTREL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, service)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started")
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engine, service, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

// loadExprRulesFromDatabase loads expression rules into the engine.
// All expression rules are configured via POST /rules - no hardcoded defaults.
func loadExprRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListExprRules(ctx)
	if err != nil {
		slog.Warn("failed to list expression rules from database", "error", err)
		return nil // Start with builtin rules only - more can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading expression rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	slog.Info("no expression rules in database - configure via POST /rules API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 KESTREL                  ║")
	fmt.Println("  ║     Learner Submission Validation         ║")
	fmt.Println("  ║      Eyes on every enrolment.             ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /validate            - Validate a learner batch")
	fmt.Println("    GET  /runs/{id}           - Get validation run by ID")
	fmt.Println("    GET  /rules               - List expression rules")
	fmt.Println("    POST /rules               - Create an expression rule")
	fmt.Println("    POST /rules/reload        - Hot-reload rules from database")
	fmt.Println("    POST /refdata/reload      - Rebuild reference indices")
	fmt.Println("    GET  /refdata/diagnostics - Last index build diagnostics")
	fmt.Println("    GET  /health              - Health check")
	fmt.Println()
}
