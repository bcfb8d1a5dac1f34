package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/directaid/backend/internal/auth"
	"github.com/directaid/backend/internal/config"
	"github.com/directaid/backend/internal/events"
	"github.com/directaid/backend/internal/http/handlers"
	"github.com/directaid/backend/internal/metrics"
	"github.com/directaid/backend/internal/models"
	"github.com/directaid/backend/internal/rbac"
	"github.com/directaid/backend/internal/repositories/memory"
	"github.com/directaid/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type apiTest struct {
	app    *fiber.App
	cfg    *config.Config
	tokens map[string]string
	ids    map[string]uuid.UUID
}

func newAPITest(t *testing.T) *apiTest {
	t.Helper()
	log := zap.NewNop()
	m := metrics.New()
	cfg := &config.Config{
		DefaultCurrency:     "NGN",
		PlatformFeeBPS:      500,
		VATBPS:              750,
		EscrowReleasePolicy: string(models.ReleaseSingle),
		PostTimeout:         5 * time.Second,
		AuditBufferSize:     1024,
		JWTSecret:           "test-secret",
		JWTExpiration:       time.Hour,
		ServiceAPIKey:       "svc-key",
	}

	ledger := memory.NewLedgerStore()
	campaignStore := memory.NewCampaignStore()
	disputeStore := memory.NewDisputeStore()
	audit := memory.NewAuditSink()
	bus := events.NewLocalBus()

	auditor := services.NewAuditor(audit, bus, cfg.AuditBufferSize, m, log)
	balances := services.NewBalanceCalculator(ledger, memory.NewBalanceCache(), cfg.DefaultCurrency, m, log)
	escrow := services.NewEscrowStateMachine(memory.NewConfirmationStore(), campaignStore, disputeStore, models.ReleaseSingle, auditor, m, log)
	disputes := services.NewDisputeManager(disputeStore, ledger, auditor, m, log)
	campaigns := services.NewCampaignService(campaignStore, auditor, cfg.DefaultCurrency, log)
	poster := services.NewTransactionPoster(ledger, campaignStore, disputes, escrow, balances, auditor, m, cfg, log)

	app := fiber.New()
	SetupRouter(app, cfg, log, nil, m,
		handlers.NewAuthHandler(cfg, log),
		handlers.NewMetaHandler(cfg),
		handlers.NewLedgerHandler(poster, balances, ledger, cfg, log),
		handlers.NewCampaignHandler(campaigns, escrow, balances, cfg, log),
		handlers.NewDisputeHandler(disputes, log),
		handlers.NewAuditHandler(audit, log),
		handlers.NewWSHub(cfg, bus, log),
	)

	at := &apiTest{app: app, cfg: cfg, tokens: map[string]string{}, ids: map[string]uuid.UUID{}}
	for _, role := range []string{rbac.RoleAdmin, rbac.RoleBeneficiary, rbac.RoleProvider, rbac.RoleDonor, rbac.RoleSystem} {
		id := uuid.New()
		if role == rbac.RoleSystem {
			id = uuid.Nil
		}
		token, err := auth.GenerateJWT(cfg.JWTSecret, id, role, time.Hour)
		require.NoError(t, err)
		at.tokens[role] = token
		at.ids[role] = id
	}
	return at
}

func (at *apiTest) do(t *testing.T, method, path, role string, body any, headers ...string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+at.tokens[role])
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := at.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

// fundedCampaign creates, approves and assigns a campaign, then posts one
// donation of 500 into its escrow.
func (at *apiTest) fundedCampaign(t *testing.T) string {
	t.Helper()
	status, body := at.do(t, "POST", "/api/v1/campaigns", rbac.RoleBeneficiary, map[string]any{
		"title":         "Clinic supplies",
		"target_amount": "1000",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	id := body["data"].(map[string]any)["id"].(string)

	status, body = at.do(t, "PUT", "/api/v1/campaigns/"+id+"/moderation", rbac.RoleAdmin, map[string]any{"admin_status": "approved"})
	require.Equal(t, fiber.StatusOK, status, body)
	status, body = at.do(t, "PUT", "/api/v1/campaigns/"+id+"/provider", rbac.RoleAdmin, map[string]any{"provider_id": at.ids[rbac.RoleProvider]})
	require.Equal(t, fiber.StatusOK, status, body)

	status, body = at.do(t, "POST", "/api/v1/webhooks/donations", rbac.RoleSystem, map[string]any{
		"campaign_id": id,
		"donor_id":    at.ids[rbac.RoleDonor],
		"donation_id": "don-1",
		"amount":      "500",
	}, "Idempotency-Key", "gw-"+id)
	require.Equal(t, fiber.StatusCreated, status, body)
	return id
}

func TestHealthAndMetrics(t *testing.T) {
	at := newAPITest(t)
	status, body := at.do(t, "GET", "/health", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "ok", body["status"])

	status, _ = at.do(t, "GET", "/metrics", "", nil)
	require.Equal(t, fiber.StatusOK, status)
}

func TestMeta(t *testing.T) {
	at := newAPITest(t)
	status, body := at.do(t, "GET", "/api/v1/meta/accounts", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, body["data"], len(models.ChartOfAccounts))

	status, body = at.do(t, "GET", "/api/v1/meta/ledger", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	settings := body["data"].(map[string]any)
	require.Equal(t, "NGN", settings["currency"])
	require.Equal(t, "single", settings["release_policy"])
}

func TestIssueToken(t *testing.T) {
	at := newAPITest(t)
	req := map[string]any{"user_id": uuid.New(), "role": "donor"}

	status, _ := at.do(t, "POST", "/api/v1/auth/token", "", req)
	require.Equal(t, fiber.StatusUnauthorized, status)

	status, body := at.do(t, "POST", "/api/v1/auth/token", "", req, "X-Service-Key", "svc-key")
	require.Equal(t, fiber.StatusOK, status, body)
	claims, err := auth.ParseJWT(at.cfg.JWTSecret, body["token"].(string))
	require.NoError(t, err)
	require.Equal(t, rbac.RoleDonor, claims.Role)

	status, _ = at.do(t, "POST", "/api/v1/auth/token", "", map[string]any{"role": "ADMIN"}, "X-Service-Key", "svc-key")
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestRequiresAuth(t *testing.T) {
	at := newAPITest(t)
	status, _ := at.do(t, "GET", "/api/v1/campaigns", "", nil)
	require.Equal(t, fiber.StatusUnauthorized, status)
}

func TestDonationWebhook(t *testing.T) {
	at := newAPITest(t)
	id := at.fundedCampaign(t)
	donation := map[string]any{
		"campaign_id": id,
		"donor_id":    at.ids[rbac.RoleDonor],
		"donation_id": "don-1",
		"amount":      "500",
	}

	// Redelivery of the same gateway event posts nothing new.
	status, body := at.do(t, "POST", "/api/v1/webhooks/donations", rbac.RoleSystem, donation, "Idempotency-Key", "gw-"+id)
	require.Equal(t, fiber.StatusCreated, status, body)
	require.Equal(t, "gw-"+id, body["transaction_id"])

	donation["amount"] = "501"
	status, _ = at.do(t, "POST", "/api/v1/webhooks/donations", rbac.RoleSystem, donation, "Idempotency-Key", "gw-"+id)
	require.Equal(t, fiber.StatusConflict, status)

	status, _ = at.do(t, "POST", "/api/v1/webhooks/donations", rbac.RoleSystem, donation)
	require.Equal(t, fiber.StatusBadRequest, status)

	status, _ = at.do(t, "POST", "/api/v1/webhooks/donations", rbac.RoleDonor, donation, "Idempotency-Key", "gw-x")
	require.Equal(t, fiber.StatusForbidden, status)

	status, body = at.do(t, "GET", "/api/v1/campaigns/"+id+"/balances", rbac.RoleDonor, nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "500", body["escrow"])
}

func TestReleaseFlow(t *testing.T) {
	at := newAPITest(t)
	id := at.fundedCampaign(t)
	release := map[string]any{"transaction_id": "rel-1", "amount": "200"}

	status, body := at.do(t, "POST", "/api/v1/campaigns/"+id+"/releases", rbac.RoleSystem, release)
	require.Equal(t, fiber.StatusLocked, status)
	require.Contains(t, body["error"], "awaiting provider confirmation")

	status, _ = at.do(t, "POST", "/api/v1/campaigns/"+id+"/confirmation/beneficiary", rbac.RoleBeneficiary, nil)
	require.Equal(t, fiber.StatusConflict, status)
	status, _ = at.do(t, "POST", "/api/v1/campaigns/"+id+"/confirmation/provider", rbac.RoleDonor, nil)
	require.Equal(t, fiber.StatusForbidden, status)

	status, _ = at.do(t, "POST", "/api/v1/campaigns/"+id+"/confirmation/provider", rbac.RoleProvider, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, body = at.do(t, "POST", "/api/v1/campaigns/"+id+"/releases", rbac.RoleSystem, release)
	require.Equal(t, fiber.StatusLocked, status)
	require.Contains(t, body["error"], "awaiting beneficiary confirmation")

	status, _ = at.do(t, "POST", "/api/v1/campaigns/"+id+"/confirmation/beneficiary", rbac.RoleBeneficiary, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, body = at.do(t, "POST", "/api/v1/campaigns/"+id+"/releases", rbac.RoleSystem, release)
	require.Equal(t, fiber.StatusCreated, status, body)

	status, _ = at.do(t, "POST", "/api/v1/campaigns/"+id+"/releases", rbac.RoleSystem, map[string]any{"transaction_id": "rel-2", "amount": "301"})
	require.Equal(t, fiber.StatusUnprocessableEntity, status)

	status, body = at.do(t, "GET", "/api/v1/campaigns/"+id+"/balances", rbac.RoleBeneficiary, nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "300", body["escrow"])
	require.Equal(t, "200", body["provider_balance"])

	provider := at.ids[rbac.RoleProvider].String()
	status, body = at.do(t, "GET", "/api/v1/accounts/provider_balance/balance?provider_id="+provider, rbac.RoleProvider, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	require.Equal(t, "200", body["balance"])

	status, _ = at.do(t, "GET", "/api/v1/accounts/campaign_escrow/balance", rbac.RoleProvider, nil)
	require.Equal(t, fiber.StatusForbidden, status)

	status, body = at.do(t, "POST", "/api/v1/payouts", rbac.RoleProvider, map[string]any{
		"transaction_id": "po-1", "payout_id": "po-1", "amount": "150",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
}

func TestDisputeLocksRelease(t *testing.T) {
	at := newAPITest(t)
	id := at.fundedCampaign(t)
	at.do(t, "POST", "/api/v1/campaigns/"+id+"/confirmation/provider", rbac.RoleProvider, nil)
	at.do(t, "POST", "/api/v1/campaigns/"+id+"/confirmation/beneficiary", rbac.RoleBeneficiary, nil)

	status, body := at.do(t, "POST", "/api/v1/disputes", rbac.RoleDonor, map[string]any{
		"entity_type": "donation", "entity_id": "don-1", "reason": "not delivered",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	disputeID := body["data"].(map[string]any)["id"].(string)

	status, body = at.do(t, "POST", "/api/v1/campaigns/"+id+"/releases", rbac.RoleSystem, map[string]any{"transaction_id": "rel-1", "amount": "10"})
	require.Equal(t, fiber.StatusLocked, status)
	require.Contains(t, body["error"], "frozen pending dispute resolution")

	status, _ = at.do(t, "POST", "/api/v1/disputes/"+disputeID+"/resolve", rbac.RoleDonor, map[string]any{"action": "refund"})
	require.Equal(t, fiber.StatusForbidden, status)
	status, body = at.do(t, "POST", "/api/v1/disputes/"+disputeID+"/resolve", rbac.RoleAdmin, map[string]any{"action": "refund", "notes": "goods missing"})
	require.Equal(t, fiber.StatusOK, status, body)

	status, body = at.do(t, "POST", "/api/v1/campaigns/"+id+"/refunds", rbac.RoleAdmin, map[string]any{
		"transaction_id": "ref-1",
		"donation_id":    "don-1",
		"donor_id":       at.ids[rbac.RoleDonor],
		"amount":         "500",
		"dispute_id":     disputeID,
	})
	require.Equal(t, fiber.StatusCreated, status, body)

	status, body = at.do(t, "GET", "/api/v1/campaigns/"+id+"/balances", rbac.RoleDonor, nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "0", body["escrow"])

	status, _ = at.do(t, "GET", "/api/v1/disputes", rbac.RoleDonor, nil)
	require.Equal(t, fiber.StatusForbidden, status)
	status, _ = at.do(t, "GET", "/api/v1/disputes", rbac.RoleAdmin, nil)
	require.Equal(t, fiber.StatusOK, status)
}

func TestFeeQuoteAndDeduction(t *testing.T) {
	at := newAPITest(t)
	id := at.fundedCampaign(t)

	status, body := at.do(t, "GET", "/api/v1/fees/quote?amount=500", rbac.RoleAdmin, nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "25", body["fee"])
	require.Equal(t, "1.88", body["vat"])

	status, body = at.do(t, "POST", "/api/v1/campaigns/"+id+"/fees", rbac.RoleSystem, map[string]any{
		"transaction_id": "fee-1", "gross": "500",
	})
	require.Equal(t, fiber.StatusCreated, status, body)

	status, body = at.do(t, "GET", "/api/v1/accounts/platform_revenue/balance", rbac.RoleAdmin, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	require.Equal(t, "23.12", body["balance"])

	status, body = at.do(t, "GET", "/api/v1/balances/snapshot?campaign_id="+id, rbac.RoleAdmin, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	snapshot := body["data"].(map[string]any)
	require.Equal(t, "475", snapshot["CAMPAIGN_ESCROW"])
	require.Equal(t, "1.88", snapshot["TAX_PAYABLE_VAT"])

	status, _ = at.do(t, "GET", "/api/v1/balances/snapshot", rbac.RoleDonor, nil)
	require.Equal(t, fiber.StatusForbidden, status)
}

func TestReverseAndEntries(t *testing.T) {
	at := newAPITest(t)
	id := at.fundedCampaign(t)
	txID := "gw-" + id

	status, _ := at.do(t, "POST", "/api/v1/transactions/"+txID+"/reverse", rbac.RoleSystem, map[string]any{"transaction_id": "rev-1"})
	require.Equal(t, fiber.StatusForbidden, status)

	status, body := at.do(t, "POST", "/api/v1/transactions/"+txID+"/reverse", rbac.RoleAdmin, map[string]any{
		"transaction_id": "rev-1", "note": "chargeback",
	})
	require.Equal(t, fiber.StatusCreated, status, body)

	status, _ = at.do(t, "POST", "/api/v1/transactions/"+txID+"/reverse", rbac.RoleAdmin, map[string]any{"transaction_id": "rev-2"})
	require.Equal(t, fiber.StatusConflict, status)

	status, body = at.do(t, "GET", "/api/v1/accounts/campaign_escrow/entries?campaign_id="+id+"&limit=1", rbac.RoleAdmin, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	require.Len(t, body["entries"], 1)
	next := body["next_seq"].(float64)
	require.NotZero(t, next)

	status, body = at.do(t, "GET", "/api/v1/accounts/campaign_escrow/entries?campaign_id="+id+"&after_seq="+strconv.FormatInt(int64(next), 10), rbac.RoleAdmin, nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, body["entries"], 1)
	_, more := body["next_seq"]
	require.False(t, more)

	status, _ = at.do(t, "GET", "/api/v1/accounts/not_an_account/balance", rbac.RoleAdmin, nil)
	require.Equal(t, fiber.StatusBadRequest, status)
}
