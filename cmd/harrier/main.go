// Harrier - Fraud and anomaly detection for expense data.
// Copyright (c) 2025 harrierhq
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/harrierhq/harrier/internal/api"
	"github.com/harrierhq/harrier/internal/bus"
	"github.com/harrierhq/harrier/internal/cache"
	"github.com/harrierhq/harrier/internal/domain"
	"github.com/harrierhq/harrier/internal/fraud"
	"github.com/harrierhq/harrier/internal/repository"
	"github.com/harrierhq/harrier/internal/rules"
	"github.com/harrierhq/harrier/internal/thresholds"
	"github.com/harrierhq/harrier/internal/worker"
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
	if os.Getenv("HARRIER_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting harrier",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("HARRIER_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
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

	// Initialize threshold provider with builtin country policies,
	// overlaid with any stored configurations.
	provider := thresholds.NewProvider()
	if err := provider.LoadFromRepository(ctx, repo); err != nil {
		slog.Warn("failed to load stored thresholds, using builtins", "error", err)
	}
	slog.Info("threshold provider initialized", "countries", len(provider.Countries()))

	// Initialize custom rule engine and load org rules from the database
	custom, err := rules.NewCustomEngine()
	if err != nil {
		slog.Error("failed to initialize custom rule engine", "error", err)
		os.Exit(1)
	}
	if err := loadCustomRules(ctx, repo, custom); err != nil {
		slog.Error("failed to load custom rules", "error", err)
		os.Exit(1)
	}
	slog.Info("custom rule engine initialized", "rules_count", custom.RulesCount())

	// Initialize the detection engine
	detector := fraud.New(cfg.Fraud, provider, custom)
	slog.Info("fraud detector initialized",
		"duplicate_threshold", cfg.Fraud.DuplicateScoreThreshold,
		"auto_block_score", cfg.Fraud.AutoBlockDuplicateScore,
	)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("HARRIER_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, cacheImpl, detector)

		var orgIDs []string
		if envOrgs := os.Getenv("HARRIER_ORGS"); envOrgs != "" {
			orgIDs = strings.Split(envOrgs, ",")
		}

		workerCfg := worker.Config{
			OrgIDs:      orgIDs,
			WorkerCount: 5,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "org_count", len(orgIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, detector, provider, custom, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("harrier is ready",
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

	slog.Info("harrier shutdown complete")
}

// loadCustomRules loads global custom rules from the database into the
// engine. Org-scoped rules are loaded via POST /rules/reload.
func loadCustomRules(ctx context.Context, repo domain.Repository, engine *rules.CustomEngine) error {
	dbRules, err := repo.ListRuleConfigs(ctx, domain.GlobalOrgID)
	if err != nil {
		slog.Warn("failed to list custom rules from database", "error", err)
		return nil // Start with no custom rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading custom rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	slog.Info("no custom rules in database - configure via POST /rules API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 HARRIER                  ║")
	fmt.Println("  ║     Fraud & Anomaly Detection Engine      ║")
	fmt.Println("  ║       Every expense, explained.           ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST  /check                 - Check a transaction")
	fmt.Println("    POST  /check/batch           - Check a batch in order")
	fmt.Println("    GET   /checks/{id}           - Get check result by transaction ID")
	fmt.Println("    GET   /transactions/{id}     - Get transaction by ID")
	fmt.Println("    GET   /alerts                - List alerts")
	fmt.Println("    PATCH /alerts/{id}           - Update alert status")
	fmt.Println("    GET   /thresholds/{country}  - List country threshold policies")
	fmt.Println("    PUT   /thresholds/{country}  - Update country threshold policies")
	fmt.Println("    GET   /rules                 - List custom rules")
	fmt.Println("    POST  /rules                 - Create a custom rule")
	fmt.Println("    POST  /rules/reload          - Hot-reload custom rules")
	fmt.Println("    GET   /health                - Health check")
	fmt.Println()
}
