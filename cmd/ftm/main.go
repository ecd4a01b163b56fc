package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/shaylevin89/follow-the-money/internal/config"
	"github.com/shaylevin89/follow-the-money/internal/handler"
	"github.com/shaylevin89/follow-the-money/internal/infra/cache"
	"github.com/shaylevin89/follow-the-money/internal/infra/github"
	"github.com/shaylevin89/follow-the-money/internal/infra/observability"
	"github.com/shaylevin89/follow-the-money/internal/infra/rates"
	"github.com/shaylevin89/follow-the-money/internal/infra/resilience"
	"github.com/shaylevin89/follow-the-money/internal/scheduler"
	"github.com/shaylevin89/follow-the-money/internal/service"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = godotenv.Load()

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("github_repo", fmt.Sprintf("%s/%s", cfg.GitHubOwner, cfg.GitHubRepo)),
		zap.String("data_file", cfg.DataFile),
		zap.String("local_currency", cfg.LocalCurrency),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.String("snapshot_schedule", cfg.SnapshotSchedule),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "follow-the-money")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	rateCache := cache.New[float64](cfg.CacheTTL).WithObserver(func(hit bool) {
		if hit {
			metrics.IncrCacheHit("rates")
		} else {
			metrics.IncrCacheMiss("rates")
		}
	})
	defer rateCache.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
	}
	storeBreaker := resilience.NewCircuitBreaker("github-contents")
	ratesBreaker := resilience.NewCircuitBreaker("exchange-rates")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	store := github.NewClient(
		httpClient,
		cfg.GitHubAPIURL,
		cfg.GitHubOwner,
		cfg.GitHubRepo,
		cfg.GitHubBranch,
		cfg.DataFile,
		cfg.GitHubToken,
		storeBreaker,
		resilienceCfg,
		logger,
	)
	rateProvider := rates.NewClient(httpClient, cfg.RatesAPIURL, ratesBreaker, resilienceCfg, logger)

	// --- Services ---
	portfolioSvc := service.NewPortfolio(
		store,
		rateProvider,
		rateCache,
		metrics,
		logger,
		cfg.LocalCurrency,
		cfg.QuoteCurrency,
		cfg.FallbackRate,
	)

	authSvc, err := service.NewAuthService(cfg.OwnerPassword, cfg.OwnerPasswordHash, cfg.JWTSecret, cfg.JWTAccessTTL, logger)
	if err != nil {
		logger.Fatal("failed to init auth service", zap.Error(err))
	}

	// --- Scheduler ---
	sched := scheduler.New(logger)
	if err := sched.AddJob(cfg.SnapshotSchedule, service.NewSnapshotJob(portfolioSvc, cfg.HTTPTimeout*3)); err != nil {
		logger.Fatal("failed to register snapshot job", zap.Error(err))
	}
	sched.Start()
	defer sched.Stop()

	// --- Router ---
	router := handler.NewRouter(portfolioSvc, authSvc, metrics, logger, cfg.AllowedOrigins)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
