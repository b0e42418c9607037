// Kestrel - Fraud decision engine for card transactions.
// Copyright (c) 2025 opensource.finance
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

	"github.com/joho/godotenv"

	"github.com/opensource-finance/kestrel/internal/advisor"
	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/coordinator"
	"github.com/opensource-finance/kestrel/internal/detector"
	"github.com/opensource-finance/kestrel/internal/dispatch"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/history"
	"github.com/opensource-finance/kestrel/internal/report"
	"github.com/opensource-finance/kestrel/internal/scoring"
	"github.com/opensource-finance/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// .env is optional; real env always wins.
	_ = godotenv.Load()

	cfg, err := domain.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"history", cfg.History.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"specialists", cfg.Coordinator.Specialists,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// History store, fronted by the profile cache
	store, err := history.New(cfg.History)
	if err != nil {
		slog.Error("failed to initialize history store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("history store initialized", "driver", cfg.History.Driver)

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	cachedStore := history.NewCached(store, cacheImpl, cfg.Cache.LocalTTL, logger)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Detector pool: the six built-ins plus compiled CEL rules
	detectors := []detector.Detector{
		detector.NewCardTesting(cfg.Detectors),
		detector.NewGeoImpossibility(cfg.Detectors),
		detector.NewVelocity(cfg.Detectors),
		detector.NewCategoryAnomaly(cfg.Detectors),
		detector.NewTemporalAnomaly(cfg.Detectors),
		detector.NewMerchantScreening(cfg.Detectors),
	}

	scorer := scoring.NewEngine(cfg.Scoring)

	customRules, err := detector.CompileRules(cfg.Detectors.Rules)
	if err != nil {
		slog.Error("failed to compile custom rules", "error", err)
		os.Exit(1)
	}
	for _, rule := range customRules {
		detectors = append(detectors, rule)
		scorer.RegisterWeight(rule.Name(), rule.Weight())
	}
	slog.Info("detectors initialized",
		"builtin", len(detectors)-len(customRules),
		"custom_rules", len(customRules),
	)

	executor := dispatch.NewLocalExecutor(detectors...)

	// Advisor is optional; without an endpoint reports stay structured.
	var adv domain.Advisor = advisor.Noop{}
	if cfg.Advisor.Endpoint != "" {
		adv = advisor.NewHTTP(cfg.Advisor)
		slog.Info("advisor enabled", "endpoint", cfg.Advisor.Endpoint)
	}
	assembler := report.NewAssembler(adv, cfg.Advisor, logger)

	coord := coordinator.New(executor, scorer, cachedStore, busImpl, assembler, cfg.Coordinator, logger)

	var asyncWorker *worker.Worker
	if os.Getenv("KESTREL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.New(busImpl, coord, logger)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		}
	}

	srv := api.NewServer(cfg.Server, coord, cachedStore, cacheImpl, busImpl, Version)

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

	<-ctx.Done()
	slog.Info("shutting down...")

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

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  KESTREL - Fraud Decision Engine")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /analyze             - Analyze a transaction")
	fmt.Println("    POST /analyze/batch       - Analyze a batch")
	fmt.Println("    GET  /verdicts/{id}       - Get verdict by ID")
	fmt.Println("    GET  /transactions/{id}   - Get transaction by ID")
	fmt.Println("    GET  /users/{id}/profile  - Get user spending profile")
	fmt.Println("    GET  /health              - Health check")
	fmt.Println("    GET  /metrics             - Prometheus metrics")
	fmt.Println()
}
