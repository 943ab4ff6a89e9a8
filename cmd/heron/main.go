// Heron - Insurance product recommendations with an opinion.
// Copyright (c) 2025 smartcover.io
// Licensed under the Apache License 2.0

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

	"github.com/smartcover/heron/internal/api"
	"github.com/smartcover/heron/internal/bus"
	"github.com/smartcover/heron/internal/cache"
	"github.com/smartcover/heron/internal/catalog"
	"github.com/smartcover/heron/internal/chat"
	"github.com/smartcover/heron/internal/domain"
	"github.com/smartcover/heron/internal/recommend"
	"github.com/smartcover/heron/internal/repository"
	"github.com/smartcover/heron/internal/rules"
	"github.com/smartcover/heron/internal/worker"
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
	if os.Getenv("HERON_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting heron",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for cluster deployment via environment
	if os.Getenv("HERON_CLUSTER") == "true" {
		cfg = domain.ClusterConfig()
		slog.Info("running in cluster mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"catalog", cfg.Catalog.Path,
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

	// Load the product catalog. A missing catalog file is survivable:
	// the service starts and serves an empty catalog.
	store := catalog.Load(cfg.Catalog)
	slog.Info("catalog loaded", "products", store.Count())

	// Initialize boost rule engine
	ruleEngine, err := rules.NewEngine()
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}

	// Load boost rules from database (no hardcoded defaults - configure via API)
	if err := loadRulesFromDatabase(ctx, repo, ruleEngine); err != nil {
		slog.Error("failed to load boost rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", ruleEngine.RulesCount())

	// Initialize recommendation engine
	engine := recommend.New(store, ruleEngine)
	slog.Info("recommendation engine initialized")

	// Initialize chat responder
	responder := chat.New(nil)

	// Initialize async Worker
	var asyncWorker *worker.Worker
	if os.Getenv("HERON_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, engine)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started")
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, store, engine, ruleEngine, responder, repo, cacheImpl, busImpl, cfg.Artifacts, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("heron is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version, store.Count())

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

	slog.Info("heron shutdown complete")
}

// applyEnvOverrides lets single settings be overridden without a full
// cluster config.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("HERON_CATALOG"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("HERON_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("HERON_REDIS_ADDR"); v != "" {
		cfg.Cache.Type = "redis"
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("HERON_NATS_URL"); v != "" {
		cfg.EventBus.Type = "nats"
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("HERON_POSTGRES_HOST"); v != "" {
		cfg.Repository.Driver = "postgres"
		cfg.Repository.PostgresHost = v
		cfg.Repository.PostgresUser = os.Getenv("HERON_POSTGRES_USER")
		cfg.Repository.PostgresPassword = os.Getenv("HERON_POSTGRES_PASSWORD")
		if db := os.Getenv("HERON_POSTGRES_DB"); db != "" {
			cfg.Repository.PostgresDB = db
		}
	}
}

// loadRulesFromDatabase loads boost rules from the database into the
// engine. All rules are configured via POST /api/rules - no hardcoded
// defaults, so out of the box scoring uses the base formula only.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListBoostRules(ctx)
	if err != nil {
		slog.Warn("failed to list boost rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading boost rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	slog.Info("no boost rules in database - configure via POST /api/rules")
	return nil
}

func printBanner(cfg *domain.Config, version string, productCount int) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║                🪶 HERON                   ║")
	fmt.Println("  ║    Insurance Recommendation Engine        ║")
	fmt.Println("  ║     The right cover, first time.          ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Products: %d\n", productCount)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    GET  /api/health               - Health check")
	fmt.Println("    GET  /api/products              - List catalog products")
	fmt.Println("    POST /api/recommend             - Score recommendations for a profile")
	fmt.Println("    POST /api/risk-assessment       - Assess a profile's risk")
	fmt.Println("    POST /api/chat                  - Keyword advisory chat")
	fmt.Println("    GET  /api/customer-analysis     - Offline customer analysis")
	fmt.Println("    GET  /api/data-summary          - Offline data summary")
	fmt.Println("    GET  /api/recommendations/{id}  - Get stored recommendation")
	fmt.Println("    GET  /api/assessments/{id}      - Get stored assessment")
	fmt.Println("    GET  /api/rules                 - List boost rules")
	fmt.Println("    POST /api/rules                 - Create a boost rule")
	fmt.Println("    POST /api/rules/reload          - Hot-reload boost rules")
	fmt.Println()
}
