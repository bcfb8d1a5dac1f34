package http

import (
	"time"

	"github.com/directaid/backend/internal/config"
	"github.com/directaid/backend/internal/http/handlers"
	"github.com/directaid/backend/internal/metrics"
	"github.com/directaid/backend/internal/middleware"
	"github.com/directaid/backend/internal/rbac"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	m *metrics.Metrics,
	authHandler *handlers.AuthHandler,
	metaHandler *handlers.MetaHandler,
	ledgerHandler *handlers.LedgerHandler,
	campaignHandler *handlers.CampaignHandler,
	disputeHandler *handlers.DisputeHandler,
	auditHandler *handlers.AuditHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, Idempotency-Key",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))
	app.Use(middleware.MetricsMiddleware(m))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	api := app.Group("/api/v1")

	// Auth (service key)
	api.Post("/auth/token", authHandler.IssueToken)

	// Meta (public)
	api.Get("/meta/accounts", metaHandler.GetAccounts)
	api.Get("/meta/ledger", metaHandler.GetLedgerSettings)

	protected := api.Group("", middleware.AuthMiddleware(cfg, log))
	protected.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute, log))

	admin := middleware.RequireRole(rbac.RoleAdmin)
	viewLedger := middleware.RequirePermission(rbac.PermViewLedger)

	// Payment gateway
	protected.Post("/webhooks/donations", middleware.RequirePermission(rbac.PermRecordDonation), ledgerHandler.DonationWebhook)

	// Ledger postings
	protected.Get("/fees/quote", ledgerHandler.QuoteFee)
	protected.Post("/campaigns/:id/fees", ledgerHandler.DeductFee)
	protected.Post("/campaigns/:id/releases", ledgerHandler.ReleaseEscrow)
	protected.Post("/campaigns/:id/refunds", ledgerHandler.Refund)
	protected.Post("/payouts", ledgerHandler.RequestPayout)
	protected.Post("/wallets/:donorId/topups", ledgerHandler.TopUpWallet)
	protected.Post("/transactions/:id/reverse", ledgerHandler.Reverse)
	protected.Get("/transactions/:id", viewLedger, ledgerHandler.GetTransaction)

	// Balances
	protected.Get("/accounts/:account/balance", ledgerHandler.GetBalance)
	protected.Get("/accounts/:account/entries", ledgerHandler.ListEntries)
	protected.Get("/balances/snapshot", viewLedger, ledgerHandler.GetSnapshot)

	// Campaigns
	protected.Post("/campaigns", campaignHandler.CreateCampaign)
	protected.Get("/campaigns", campaignHandler.ListCampaigns)
	protected.Get("/campaigns/:id", campaignHandler.GetCampaign)
	protected.Get("/campaigns/:id/balances", campaignHandler.GetBalances)
	protected.Put("/campaigns/:id/provider", campaignHandler.AssignProvider)
	protected.Put("/campaigns/:id/moderation", campaignHandler.ModerateCampaign)
	protected.Post("/campaigns/:id/cancel", campaignHandler.CancelCampaign)
	protected.Post("/campaigns/:id/complete", campaignHandler.CompleteCampaign)

	// Confirmations
	protected.Get("/campaigns/:id/confirmation", campaignHandler.GetConfirmation)
	protected.Post("/campaigns/:id/confirmation/provider", campaignHandler.ConfirmProvider)
	protected.Post("/campaigns/:id/confirmation/beneficiary", campaignHandler.ConfirmBeneficiary)

	// Disputes
	protected.Post("/disputes", disputeHandler.RaiseDispute)
	protected.Get("/disputes", admin, disputeHandler.ListDisputes)
	protected.Get("/disputes/:id", disputeHandler.GetDispute)
	protected.Post("/disputes/:id/review", disputeHandler.StartReview)
	protected.Post("/disputes/:id/resolve", disputeHandler.ResolveDispute)
	protected.Post("/disputes/:id/reject", disputeHandler.RejectDispute)

	// Audit
	protected.Get("/audit/:entityType/:entityId", admin, auditHandler.GetEntityHistory)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
