package services

import (
	"context"
	"testing"

	"github.com/directaid/backend/internal/config"
	"github.com/directaid/backend/internal/events"
	"github.com/directaid/backend/internal/metrics"
	"github.com/directaid/backend/internal/models"
	"github.com/directaid/backend/internal/rbac"
	"github.com/directaid/backend/internal/repositories/memory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	cfg           *config.Config
	ledger        *memory.LedgerStore
	campaignStore *memory.CampaignStore
	disputeStore  *memory.DisputeStore
	audit         *memory.AuditSink
	cache         *memory.BalanceCache
	bus           *events.LocalBus

	auditor    *Auditor
	balances   *BalanceCalculator
	escrow     *EscrowStateMachine
	disputes   *DisputeManager
	campaigns  *CampaignService
	poster     *TransactionPoster
	reconciler *Reconciler

	admin       models.Actor
	beneficiary models.Actor
	provider    models.Actor
	donor       models.Actor
	system      models.Actor
}

func newTestEnv(t *testing.T, policy models.ReleasePolicy) *testEnv {
	t.Helper()
	log := zap.NewNop()
	m := metrics.New()
	cfg := &config.Config{
		DefaultCurrency:     "NGN",
		PlatformFeeBPS:      500,
		VATBPS:              750,
		WHTBPS:              500,
		EscrowReleasePolicy: string(policy),
		AuditBufferSize:     256,
	}

	env := &testEnv{
		cfg:           cfg,
		ledger:        memory.NewLedgerStore(),
		campaignStore: memory.NewCampaignStore(),
		disputeStore:  memory.NewDisputeStore(),
		audit:         memory.NewAuditSink(),
		cache:         memory.NewBalanceCache(),
		bus:           events.NewLocalBus(),
		admin:         models.Actor{ID: uuid.New(), Role: rbac.RoleAdmin},
		beneficiary:   models.Actor{ID: uuid.New(), Role: rbac.RoleBeneficiary},
		provider:      models.Actor{ID: uuid.New(), Role: rbac.RoleProvider},
		donor:         models.Actor{ID: uuid.New(), Role: rbac.RoleDonor},
		system:        models.SystemActor,
	}
	confirmations := memory.NewConfirmationStore()

	env.auditor = NewAuditor(env.audit, env.bus, cfg.AuditBufferSize, m, log)
	env.balances = NewBalanceCalculator(env.ledger, env.cache, cfg.DefaultCurrency, m, log)
	env.escrow = NewEscrowStateMachine(confirmations, env.campaignStore, env.disputeStore, policy, env.auditor, m, log)
	env.disputes = NewDisputeManager(env.disputeStore, env.ledger, env.auditor, m, log)
	env.campaigns = NewCampaignService(env.campaignStore, env.auditor, cfg.DefaultCurrency, log)
	env.poster = NewTransactionPoster(env.ledger, env.campaignStore, env.disputes, env.escrow, env.balances, env.auditor, m, cfg, log)
	env.reconciler = NewReconciler(env.ledger, env.campaignStore, env.balances, cfg.DefaultCurrency, m, log)
	return env
}

// activeCampaign creates an approved campaign with the env's provider assigned.
func (env *testEnv) activeCampaign(t *testing.T) *models.Campaign {
	t.Helper()
	ctx := context.Background()
	c := &models.Campaign{Title: "Clinic roof", TargetAmount: dec("100000")}
	require.NoError(t, env.campaigns.Create(ctx, env.beneficiary, c))
	_, err := env.campaigns.Moderate(ctx, env.admin, c.ID, models.ModerationApproved)
	require.NoError(t, err)
	c, err = env.campaigns.AssignProvider(ctx, env.admin, c.ID, env.provider.ID)
	require.NoError(t, err)
	return c
}

func (env *testEnv) donate(t *testing.T, c *models.Campaign, txID, donationID, amount string) {
	t.Helper()
	_, err := env.poster.Post(context.Background(), env.system, models.Donation{
		TxID:       txID,
		CampaignID: c.ID,
		DonorID:    env.donor.ID,
		DonationID: donationID,
		Amount:     dec(amount),
	})
	require.NoError(t, err)
}

func (env *testEnv) confirmBoth(t *testing.T, c *models.Campaign) {
	t.Helper()
	ctx := context.Background()
	_, err := env.escrow.ConfirmProvider(ctx, c.ID, env.provider)
	require.NoError(t, err)
	_, err = env.escrow.ConfirmBeneficiary(ctx, c.ID, env.beneficiary)
	require.NoError(t, err)
}

func (env *testEnv) balance(t *testing.T, account models.Account, f models.EntryFilter) decimal.Decimal {
	t.Helper()
	v, err := env.balances.BalanceOf(context.Background(), account, f)
	require.NoError(t, err)
	return v
}

func (env *testEnv) escrowOf(t *testing.T, c *models.Campaign) decimal.Decimal {
	return env.balance(t, models.AccountCampaignEscrow, models.EntryFilter{CampaignID: c.ID})
}

func (env *testEnv) providerBalance(t *testing.T) decimal.Decimal {
	return env.balance(t, models.AccountProviderBalance, models.EntryFilter{ProviderID: env.provider.ID})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecEqual(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}
