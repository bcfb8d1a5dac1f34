package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/directaid/backend/internal/config"
	"github.com/directaid/backend/internal/db"
	"github.com/directaid/backend/internal/events"
	apphttp "github.com/directaid/backend/internal/http"
	"github.com/directaid/backend/internal/http/dto"
	"github.com/directaid/backend/internal/http/handlers"
	"github.com/directaid/backend/internal/metrics"
	"github.com/directaid/backend/internal/models"
	"github.com/directaid/backend/internal/repositories"
	"github.com/directaid/backend/internal/repositories/memory"
	"github.com/directaid/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	var (
		ledger        services.LedgerStore
		campaignStore services.CampaignStore
		confirmations services.ConfirmationStore
		disputeStore  services.DisputeStore
		auditSink     services.AuditSink
		auditReader   handlers.AuditReader
		cache         services.BalanceCache
		publisher     events.Publisher
		subscriber    events.Subscriber
		rdb           *redis.Client
	)

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		audit := memory.NewAuditSink()
		bus := events.NewLocalBus()
		ledger = memory.NewLedgerStore()
		campaignStore = memory.NewCampaignStore()
		confirmations = memory.NewConfirmationStore()
		disputeStore = memory.NewDisputeStore()
		auditSink, auditReader = audit, audit
		cache = memory.NewBalanceCache()
		publisher, subscriber = bus, bus

	default:
		pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: int32(cfg.PGMaxConns)}, log)
		if err != nil {
			log.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()

		if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}

		rdb, err = db.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()

		audit := repositories.NewAuditRepo(pool)
		ledger = repositories.NewLedgerRepo(pool)
		campaignStore = repositories.NewCampaignRepo(pool)
		confirmations = repositories.NewConfirmationRepo(pool)
		disputeStore = repositories.NewDisputeRepo(pool)
		auditSink, auditReader = audit, audit
		cache = repositories.NewRedisBalanceCache(rdb, cfg.BalanceCacheTTL)

		fanout := events.Fanout{events.NewRedisPublisher(rdb, log)}
		if len(cfg.KafkaBrokers) > 0 {
			kafka, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
			if err != nil {
				log.Fatal("failed to create kafka publisher", zap.Error(err))
			}
			defer kafka.Close()
			fanout = append(fanout, kafka)
		}
		publisher = fanout
		subscriber = events.NewRedisSubscriber(rdb, log)
	}

	// Services
	auditor := services.NewAuditor(auditSink, publisher, cfg.AuditBufferSize, m, log)
	balances := services.NewBalanceCalculator(ledger, cache, cfg.DefaultCurrency, m, log)
	escrow := services.NewEscrowStateMachine(confirmations, campaignStore, disputeStore,
		models.ReleasePolicy(cfg.EscrowReleasePolicy), auditor, m, log)
	disputes := services.NewDisputeManager(disputeStore, ledger, auditor, m, log)
	campaignService := services.NewCampaignService(campaignStore, auditor, cfg.DefaultCurrency, log)
	poster := services.NewTransactionPoster(ledger, campaignStore, disputes, escrow, balances, auditor, m, cfg, log)

	auditDone := make(chan struct{})
	go func() {
		defer close(auditDone)
		_ = auditor.Run(ctx)
	}()

	// Handlers
	authHandler := handlers.NewAuthHandler(cfg, log)
	metaHandler := handlers.NewMetaHandler(cfg)
	ledgerHandler := handlers.NewLedgerHandler(poster, balances, ledger, cfg, log)
	campaignHandler := handlers.NewCampaignHandler(campaignService, escrow, balances, cfg, log)
	disputeHandler := handlers.NewDisputeHandler(disputes, log)
	auditHandler := handlers.NewAuditHandler(auditReader, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	if err := wsHub.Start(ctx); err != nil {
		log.Error("failed to start ws hub", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(dto.ErrorResponse{Error: err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, m, authHandler, metaHandler, ledgerHandler, campaignHandler, disputeHandler, auditHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		_ = app.ShutdownWithTimeout(10 * time.Second)
		cancel()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server",
		zap.String("addr", addr),
		zap.String("store", cfg.StoreDriver),
		zap.String("release_policy", cfg.EscrowReleasePolicy),
	)
	if err := app.Listen(addr); err != nil {
		log.Error("server error", zap.Error(err))
	}

	cancel()
	<-auditDone
}
