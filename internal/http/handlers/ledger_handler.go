package handlers

import (
	"context"
	"strings"

	"github.com/directaid/backend/internal/config"
	"github.com/directaid/backend/internal/http/dto"
	"github.com/directaid/backend/internal/middleware"
	"github.com/directaid/backend/internal/models"
	"github.com/directaid/backend/internal/rbac"
	"github.com/directaid/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxEntriesPage = 500

type LedgerHandler struct {
	poster   *services.TransactionPoster
	balances *services.BalanceCalculator
	ledger   services.LedgerStore
	cfg      *config.Config
	log      *zap.Logger
}

func NewLedgerHandler(
	poster *services.TransactionPoster,
	balances *services.BalanceCalculator,
	ledger services.LedgerStore,
	cfg *config.Config,
	log *zap.Logger,
) *LedgerHandler {
	return &LedgerHandler{poster: poster, balances: balances, ledger: ledger, cfg: cfg, log: log}
}

func (h *LedgerHandler) post(c *fiber.Ctx, ev models.BusinessEvent) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.cfg.PostTimeout)
	defer cancel()

	txID, err := h.poster.Post(ctx, middleware.GetActor(c), ev)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.PostResponse{TransactionID: txID, Event: ev.Type()})
}

// DonationWebhook records a captured payment. The gateway's transaction id
// arrives in the Idempotency-Key header so redeliveries post nothing new.
func (h *LedgerHandler) DonationWebhook(c *fiber.Ctx) error {
	txID := strings.TrimSpace(c.Get("Idempotency-Key"))
	if txID == "" {
		return badRequest(c, "Idempotency-Key header is required")
	}
	var req dto.DonationWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	return h.post(c, models.Donation{
		TxID:       txID,
		CampaignID: req.CampaignID,
		DonorID:    req.DonorID,
		DonationID: req.DonationID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		FromWallet: req.FromWallet,
	})
}

func (h *LedgerHandler) DeductFee(c *fiber.Ctx) error {
	campaignID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}
	var req dto.FeeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Gross != nil {
		req.Amount, req.VAT, req.WHT = h.poster.FeeFor(*req.Gross)
	}
	return h.post(c, models.FeeDeduction{
		TxID:       req.TransactionID,
		CampaignID: campaignID,
		Amount:     req.Amount,
		VAT:        req.VAT,
		WHT:        req.WHT,
		Currency:   req.Currency,
	})
}

func (h *LedgerHandler) QuoteFee(c *fiber.Ctx) error {
	gross, err := decimal.NewFromString(c.Query("amount"))
	if err != nil || !gross.IsPositive() {
		return badRequest(c, "amount must be a positive decimal")
	}
	fee, vat, wht := h.poster.FeeFor(gross)
	currency := strings.ToUpper(c.Query("currency", h.cfg.DefaultCurrency))
	return c.JSON(dto.FeeQuoteResponse{Gross: gross, Fee: fee, VAT: vat, WHT: wht, Currency: currency})
}

func (h *LedgerHandler) ReleaseEscrow(c *fiber.Ctx) error {
	campaignID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}
	var req dto.ReleaseRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	return h.post(c, models.EscrowRelease{
		TxID:       req.TransactionID,
		CampaignID: campaignID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		DisputeID:  optionalUUID(req.DisputeID),
	})
}

func (h *LedgerHandler) Refund(c *fiber.Ctx) error {
	campaignID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}
	var req dto.RefundRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	return h.post(c, models.Refund{
		TxID:       req.TransactionID,
		CampaignID: campaignID,
		DonationID: req.DonationID,
		DonorID:    req.DonorID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Stage:      models.RefundStage(strings.ToUpper(req.Stage)),
		DisputeID:  optionalUUID(req.DisputeID),
	})
}

// RequestPayout pays out the calling provider's balance.
func (h *LedgerHandler) RequestPayout(c *fiber.Ctx) error {
	var req dto.PayoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	return h.post(c, models.Payout{
		TxID:       req.TransactionID,
		ProviderID: middleware.GetUserID(c),
		PayoutID:   req.PayoutID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		DisputeID:  optionalUUID(req.DisputeID),
	})
}

func (h *LedgerHandler) TopUpWallet(c *fiber.Ctx) error {
	donorID, err := uuid.Parse(c.Params("donorId"))
	if err != nil {
		return badRequest(c, "invalid donor id")
	}
	var req dto.TopUpRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	return h.post(c, models.WalletTopUp{
		TxID:     req.TransactionID,
		DonorID:  donorID,
		Amount:   req.Amount,
		Currency: req.Currency,
	})
}

func (h *LedgerHandler) Reverse(c *fiber.Ctx) error {
	var req dto.ReverseRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), h.cfg.PostTimeout)
	defer cancel()

	txID, err := h.poster.Reverse(ctx, middleware.GetActor(c), req.TransactionID, c.Params("id"), req.Note)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.PostResponse{TransactionID: txID, Event: models.EventReversal})
}

func (h *LedgerHandler) GetTransaction(c *fiber.Ctx) error {
	tx, err := h.ledger.GetTransaction(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: tx})
}

func (h *LedgerHandler) GetBalance(c *fiber.Ctx) error {
	account, f, err := h.accountFilter(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	if !canView(middleware.GetActor(c), account, f) {
		return writeError(c, h.log, models.ErrNotAuthorized)
	}

	bal, err := h.balances.BalanceOf(c.UserContext(), account, f)
	if err != nil {
		return writeError(c, h.log, err)
	}
	currency := f.Currency
	if currency == "" {
		currency = h.cfg.DefaultCurrency
	}
	return c.JSON(dto.BalanceResponse{Account: account, Currency: currency, Balance: bal, AsOf: f.AsOf})
}

// ListEntries pages through an account's rows in append order. after_seq is
// the cursor returned as next_seq by the previous page.
func (h *LedgerHandler) ListEntries(c *fiber.Ctx) error {
	account, f, err := h.accountFilter(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	if !canView(middleware.GetActor(c), account, f) {
		return writeError(c, h.log, models.ErrNotAuthorized)
	}

	limit := queryInt(c, "limit", 100)
	if limit <= 0 || limit > maxEntriesPage {
		limit = 100
	}
	after := int64(queryInt(c, "after_seq", 0))

	resp := dto.EntriesResponse{Entries: []models.LedgerEntry{}}
	for e, err := range h.ledger.QueryByAccount(c.UserContext(), account, f) {
		if err != nil {
			return writeError(c, h.log, err)
		}
		if e.Seq <= after {
			continue
		}
		if len(resp.Entries) == limit {
			resp.NextSeq = resp.Entries[limit-1].Seq
			break
		}
		resp.Entries = append(resp.Entries, e)
	}
	return c.JSON(resp)
}

// GetSnapshot returns every account of the chart for one scope.
func (h *LedgerHandler) GetSnapshot(c *fiber.Ctx) error {
	f, err := scopeFilter(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	balances, err := h.balances.Snapshot(c.UserContext(), f)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: balances})
}

func (h *LedgerHandler) accountFilter(c *fiber.Ctx) (models.Account, models.EntryFilter, error) {
	account, err := models.ParseAccount(c.Params("account"))
	if err != nil {
		return "", models.EntryFilter{}, err
	}
	f, err := scopeFilter(c)
	if err != nil {
		return "", f, err
	}
	return account, f, nil
}

func scopeFilter(c *fiber.Ctx) (models.EntryFilter, error) {
	var q dto.BalanceQuery
	if err := c.QueryParser(&q); err != nil {
		return models.EntryFilter{}, models.ErrInvalidInput
	}
	f := models.EntryFilter{
		Currency:   strings.ToUpper(q.Currency),
		DonationID: q.DonationID,
		PayoutID:   q.PayoutID,
	}
	for _, p := range []struct {
		raw string
		dst *uuid.UUID
	}{
		{q.CampaignID, &f.CampaignID},
		{q.ProviderID, &f.ProviderID},
		{q.DonorID, &f.DonorID},
	} {
		if p.raw == "" {
			continue
		}
		id, err := uuid.Parse(p.raw)
		if err != nil {
			return f, models.ErrInvalidInput
		}
		*p.dst = id
	}
	asOf, err := queryTime(c, "as_of")
	if err != nil {
		return f, models.ErrInvalidInput
	}
	f.AsOf = asOf
	return f, nil
}

// canView lets ledger operators see everything and other users see only
// their own wallet or provider balance.
func canView(actor models.Actor, account models.Account, f models.EntryFilter) bool {
	if rbac.HasPermission(actor.Role, rbac.PermViewLedger) {
		return true
	}
	switch {
	case actor.ID == uuid.Nil:
		return false
	case account == models.AccountUserWallet && actor.Role == rbac.RoleDonor:
		return f.DonorID == actor.ID
	case account == models.AccountProviderBalance && actor.Role == rbac.RoleProvider:
		return f.ProviderID == actor.ID
	}
	return false
}
