package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/directaid/backend/internal/config"
	"github.com/directaid/backend/internal/db"
	"github.com/directaid/backend/internal/metrics"
	"github.com/directaid/backend/internal/repositories"
	"github.com/directaid/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Fatal("worker needs a shared store, STORE_DRIVER=memory is not supported")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 4, MinConns: 1}, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	m := metrics.New()
	ledger := repositories.NewLedgerRepo(pool)
	campaigns := repositories.NewCampaignRepo(pool)
	cache := repositories.NewRedisBalanceCache(rdb, cfg.BalanceCacheTTL)
	balances := services.NewBalanceCalculator(ledger, cache, cfg.DefaultCurrency, m, log)
	reconciler := services.NewReconciler(ledger, campaigns, balances, cfg.DefaultCurrency, m, log)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	log.Info("worker started",
		zap.Duration("reconcile_interval", cfg.ReconcileInterval),
		zap.Duration("invariant_interval", cfg.InvariantCheckInterval),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return every(ctx, cfg.ReconcileInterval, func() { runCacheCheck(ctx, reconciler, log) })
	})
	g.Go(func() error {
		return every(ctx, cfg.InvariantCheckInterval, func() { runInvariantCheck(ctx, reconciler, log) })
	})
	g.Go(func() error {
		addr := fmt.Sprintf(":%s", cfg.WorkerPort)
		log.Info("worker metrics listening", zap.String("addr", addr))
		return app.Listen(addr)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down worker")
		return app.ShutdownWithTimeout(5 * time.Second)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker stopped", zap.Error(err))
	}
}

// every runs job once immediately and then on each tick until ctx is done.
func every(ctx context.Context, interval time.Duration, job func()) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	job()
	for {
		select {
		case <-ticker.C:
			job()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func runCacheCheck(ctx context.Context, reconciler *services.Reconciler, log *zap.Logger) {
	start := time.Now()
	drift, err := reconciler.CheckCache(ctx)
	if err != nil {
		log.Error("balance cache check failed", zap.Error(err))
		return
	}
	log.Info("balance cache checked", zap.Int("drift", drift), zap.Duration("took", time.Since(start)))
}

func runInvariantCheck(ctx context.Context, reconciler *services.Reconciler, log *zap.Logger) {
	ids, err := reconciler.VerifyInvariants(ctx)
	if err != nil {
		log.Error("ledger invariant check failed", zap.Error(err))
		return
	}
	if len(ids) > 0 {
		log.Error("imbalanced transactions found", zap.Strings("transaction_ids", ids))
		return
	}
	log.Info("ledger invariants hold")
}
