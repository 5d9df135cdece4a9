package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finbook/finbook/internal/config"
	"github.com/finbook/finbook/internal/domain"
	"github.com/finbook/finbook/internal/handler"
	"github.com/finbook/finbook/internal/infra/cache"
	"github.com/finbook/finbook/internal/infra/memory"
	"github.com/finbook/finbook/internal/infra/observability"
	"github.com/finbook/finbook/internal/infra/resilience"
	"github.com/finbook/finbook/internal/infra/sqlite"
	"github.com/finbook/finbook/internal/port"
	"github.com/finbook/finbook/internal/service"
	"github.com/finbook/finbook/internal/worker"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
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
		zap.String("storage_backend", cfg.StorageBackend),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Bool("enforce_dest_ownership", cfg.EnforceDestOwnership),
		zap.Bool("balance_all_statuses", cfg.BalanceAllStatuses),
		zap.Duration("worker_interval", cfg.WorkerInterval),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "finbook")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	accountCache := cache.New[*domain.FinanceAccount](cfg.CacheTTL)

	// --- Storage ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	var store port.Store
	switch cfg.StorageBackend {
	case "memory":
		logger.Warn("using in-memory storage, data will not survive restarts")
		store = memory.New()
	default:
		logger.Info("using sqlite storage", zap.String("path", cfg.SQLitePath))
		sqlStore, err := sqlite.Open(cfg.SQLitePath, resilienceCfg)
		if err != nil {
			logger.Fatal("failed to open sqlite store", zap.Error(err))
		}
		defer sqlStore.Close()
		store = sqlStore
	}

	// --- Services ---
	auth := service.NewAuthorizer()
	ledgerOpts := service.LedgerOptions{
		EnforceDestinationOwnership: cfg.EnforceDestOwnership,
		BalanceAllStatuses:          cfg.BalanceAllStatuses,
	}
	ledger := service.NewLedger(store, auth, ledgerOpts, accountCache, metrics, logger)
	accounts := service.NewAccounts(store, auth, accountCache, metrics, logger)
	catalog := service.NewCatalog(store, logger)
	subscriptions := service.NewSubscriptions(store, auth, ledger, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Ledger:        ledger,
		Accounts:      accounts,
		Catalog:       catalog,
		Subscriptions: subscriptions,
	}, store, metrics, cfg.JWTSecret, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	subWorker := worker.NewSubscriptionWorker(subscriptions, cfg.WorkerInterval, cfg.WorkerBatchLimit, logger)

	// --- Run server + worker, stop both on SIGINT/SIGTERM ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return subWorker.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("server stopped")
}
