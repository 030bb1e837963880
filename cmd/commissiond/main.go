// Commission Engine - computation and distribution of loan commissions.
// Copyright (c) 2026 LoanPulse
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/loanpulse/commission-engine/internal/api"
	"github.com/loanpulse/commission-engine/internal/bus"
	"github.com/loanpulse/commission-engine/internal/cache"
	"github.com/loanpulse/commission-engine/internal/config"
	"github.com/loanpulse/commission-engine/internal/distribution"
	"github.com/loanpulse/commission-engine/internal/incentive"
	"github.com/loanpulse/commission-engine/internal/lifecycle"
	"github.com/loanpulse/commission-engine/internal/metrics"
	"github.com/loanpulse/commission-engine/internal/payout"
	"github.com/loanpulse/commission-engine/internal/rates"
	"github.com/loanpulse/commission-engine/internal/repository"
	"github.com/loanpulse/commission-engine/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logLevel := slog.LevelInfo
	if os.Getenv("COMMISSION_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting commission engine",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	cfg := config.MustLoad()

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"repository", cfg.Database.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
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

	// Repository
	repo, err := repository.New(cfg.RepositoryConfig())
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Database.Driver)

	// Cache
	cacheImpl, err := cache.New(cfg.CacheConfig())
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Event bus
	busImpl, err := bus.New(cfg.EventBusConfig())
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Metrics
	m := metrics.New()

	// Rate tables
	tables := rates.DefaultRateTables()
	if path := cfg.RateTables.Path; path != "" {
		tables, err = rates.LoadRateTables(path)
		if err != nil {
			slog.Error("failed to load rate tables", "path", path, "error", err)
			os.Exit(1)
		}
		slog.Info("rate tables loaded", "path", path)
	}
	if err := rates.ValidateRateTables(tables); err != nil {
		slog.Error("invalid rate tables", "error", err)
		os.Exit(1)
	}

	resolver := rates.NewResolver(tables, m.ObserveZeroRate)
	params := cfg.EngineParams()
	tds := rates.NewTDSCalculator(params.TDSRatePercent)

	// Lifecycle engine
	engine := lifecycle.NewEngine(
		repo,
		cacheImpl,
		busImpl,
		resolver,
		distribution.NewDistributor(resolver, tds),
		distribution.NewReconciler(params.AdvancePayoutThreshold),
		payout.NewScheduler(params.PayoutTATDays, params.AdvancePayoutThreshold),
		m,
		params,
	)
	slog.Info("lifecycle engine initialized")

	// Incentive track
	criteriaEngine, err := incentive.NewCriteriaEngine(tables.ActivationCriteria)
	if err != nil {
		slog.Error("failed to compile activation criteria", "error", err)
		os.Exit(1)
	}
	slog.Info("activation criteria compiled", "count", criteriaEngine.CriteriaCount())

	aggregator := incentive.NewAggregator(repo, resolver)
	evaluator := incentive.NewBonusEvaluator(repo, criteriaEngine, params.ActivationBonusAmount)

	// Background worker
	var bgWorker *worker.Worker
	if cfg.Worker.Enabled {
		bgWorker = worker.NewWorker(busImpl, repo, engine, aggregator, evaluator, m)
		if err := bgWorker.Start(worker.Config{
			Concurrency:       cfg.Worker.Concurrency,
			IncentiveInterval: cfg.Worker.IncentiveInterval,
			BonusInterval:     cfg.Worker.BonusInterval,
		}); err != nil {
			slog.Error("failed to start worker", "error", err)
			os.Exit(1)
		}
	}

	// HTTP server
	srv := api.NewServer(cfg.ServerConfig(), engine, repo, cacheImpl, busImpl, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("commission engine is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	<-ctx.Done()
	slog.Info("shutting down...")

	if bgWorker != nil {
		bgWorker.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("commission engine shutdown complete")
}
