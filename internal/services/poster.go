package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/directaid/backend/internal/config"
	"github.com/directaid/backend/internal/metrics"
	"github.com/directaid/backend/internal/models"
	"github.com/directaid/backend/internal/rbac"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var bpsDenominator = decimal.NewFromInt(10000)

// TransactionPoster is the only writer of the ledger. It turns business
// events into balanced transactions and appends them atomically.
type TransactionPoster struct {
	ledger    LedgerStore
	campaigns CampaignStore
	disputes  *DisputeManager
	escrow    *EscrowStateMachine
	balances  *BalanceCalculator
	auditor   *Auditor
	metrics   *metrics.Metrics
	cfg       *config.Config
	log       *zap.Logger
}

func NewTransactionPoster(
	ledger LedgerStore,
	campaigns CampaignStore,
	disputes *DisputeManager,
	escrow *EscrowStateMachine,
	balances *BalanceCalculator,
	auditor *Auditor,
	m *metrics.Metrics,
	cfg *config.Config,
	log *zap.Logger,
) *TransactionPoster {
	return &TransactionPoster{
		ledger:    ledger,
		campaigns: campaigns,
		disputes:  disputes,
		escrow:    escrow,
		balances:  balances,
		auditor:   auditor,
		metrics:   m,
		cfg:       cfg,
		log:       log,
	}
}

// posting is a transaction ready to append, plus what the commit needs.
type posting struct {
	entries    []models.LedgerEntry
	guards     []models.BalanceGuard
	disputeID  uuid.UUID
	campaignID uuid.UUID
	amount     decimal.Decimal
	currency   string
}

// FeeFor splits the platform fee on a gross amount into fee, VAT and WHT
// using the configured basis points, rounded to minor units.
func (p *TransactionPoster) FeeFor(gross decimal.Decimal) (fee, vat, wht decimal.Decimal) {
	fee = gross.Mul(decimal.NewFromInt(int64(p.cfg.PlatformFeeBPS))).Div(bpsDenominator).Round(2)
	vat = fee.Mul(decimal.NewFromInt(int64(p.cfg.VATBPS))).Div(bpsDenominator).Round(2)
	wht = fee.Mul(decimal.NewFromInt(int64(p.cfg.WHTBPS))).Div(bpsDenominator).Round(2)
	return fee, vat, wht
}

// Post records ev as one balanced transaction and returns its id. Posting the
// same event twice is a no-op; reusing an id for a different event fails
// with ErrIdempotencyConflict.
func (p *TransactionPoster) Post(ctx context.Context, actor models.Actor, ev models.BusinessEvent) (string, error) {
	start := time.Now()
	ev = p.normalize(ev)
	kind := ev.Type()
	defer func() {
		p.metrics.PostDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	}()

	txID := strings.TrimSpace(ev.TransactionID())
	if txID == "" {
		return "", p.reject(kind, fmt.Errorf("%w: transaction id is required", models.ErrInvalidInput))
	}
	if !rbac.HasPermission(actor.Role, permissionFor(kind)) {
		return "", p.reject(kind, fmt.Errorf("%w: role %s cannot post %s", models.ErrNotAuthorized, actor.Role, kind))
	}

	fp, err := fingerprint(kind, ev)
	if err != nil {
		return "", p.reject(kind, err)
	}
	if done, err := p.checkExisting(ctx, txID, fp); done || err != nil {
		if err != nil {
			return "", p.reject(kind, err)
		}
		return txID, nil
	}

	var plan *posting
	switch e := ev.(type) {
	case models.Donation:
		plan, err = p.planDonation(ctx, txID, e)
	case models.FeeDeduction:
		plan, err = p.planFee(ctx, txID, e)
	case models.EscrowRelease:
		plan, err = p.planRelease(ctx, txID, e)
	case models.Refund:
		plan, err = p.planRefund(ctx, txID, e)
	case models.Payout:
		plan, err = p.planPayout(ctx, txID, actor, e)
	case models.WalletTopUp:
		plan, err = p.planTopUp(txID, e)
	default:
		err = fmt.Errorf("%w: unsupported event %T", models.ErrInvalidInput, ev)
	}
	if err != nil {
		return "", p.reject(kind, err)
	}

	tx := models.Transaction{
		ID:          txID,
		Type:        kind,
		Fingerprint: fp,
		Entries:     plan.entries,
	}
	if err := p.commit(ctx, tx, plan); err != nil {
		if errors.Is(err, models.ErrDuplicateTransaction) {
			if _, dupErr := p.checkExisting(ctx, txID, fp); dupErr != nil {
				return "", p.reject(kind, dupErr)
			}
			return txID, nil
		}
		return "", p.reject(kind, err)
	}

	p.committed(ctx, actor, tx, plan, models.AuditTransactionPosted)
	if kind == models.EventEscrowRelease {
		if err := p.escrow.CompleteTranche(context.WithoutCancel(ctx), plan.campaignID); err != nil {
			p.log.Warn("failed to close release round",
				zap.String("campaign_id", plan.campaignID.String()),
				zap.String("transaction_id", txID),
				zap.Error(err),
			)
		}
	}
	return txID, nil
}

// Reverse posts a mirror image of an existing transaction. A transaction can
// be reversed at most once and a reversal cannot itself be reversed.
func (p *TransactionPoster) Reverse(ctx context.Context, actor models.Actor, newID, originalID, note string) (string, error) {
	kind := models.EventReversal
	newID = strings.TrimSpace(newID)
	if newID == "" || strings.TrimSpace(originalID) == "" {
		return "", p.reject(kind, fmt.Errorf("%w: transaction ids are required", models.ErrInvalidInput))
	}
	if !rbac.HasPermission(actor.Role, rbac.PermReverse) {
		return "", p.reject(kind, fmt.Errorf("%w: only admins can reverse transactions", models.ErrNotAuthorized))
	}

	fp, err := fingerprint(kind, map[string]string{"reversal_of": originalID, "note": note})
	if err != nil {
		return "", p.reject(kind, err)
	}
	if done, err := p.checkExisting(ctx, newID, fp); done || err != nil {
		if err != nil {
			return "", p.reject(kind, err)
		}
		return newID, nil
	}

	orig, err := p.ledger.GetTransaction(ctx, originalID)
	if err != nil {
		return "", p.reject(kind, err)
	}
	if orig.Type == models.EventReversal || orig.ReversalOf != "" {
		return "", p.reject(kind, fmt.Errorf("%w: %s is a reversal and cannot be reversed", models.ErrInvalidState, originalID))
	}
	if err := p.requireUnfrozen(ctx, orig); err != nil {
		return "", p.reject(kind, err)
	}

	plan := &posting{}
	for _, e := range orig.Entries {
		meta := e.Metadata
		meta.Version = models.MetadataVersion
		meta.ReversalOf = orig.ID
		meta.Note = note
		plan.entries = append(plan.entries, models.LedgerEntry{
			TransactionID: newID,
			Account:       e.Account,
			Debit:         e.Credit,
			Credit:        e.Debit,
			Currency:      e.Currency,
			Metadata:      meta,
		})
		if plan.campaignID == uuid.Nil {
			plan.campaignID = e.Metadata.CampaignID
		}
		plan.amount = plan.amount.Add(e.Debit)
		plan.currency = e.Currency
	}
	plan.guards = guardsFor(plan.entries)

	tx := models.Transaction{
		ID:          newID,
		Type:        kind,
		Fingerprint: fp,
		ReversalOf:  orig.ID,
		Entries:     plan.entries,
	}
	if err := p.commit(ctx, tx, plan); err != nil {
		if errors.Is(err, models.ErrDuplicateTransaction) {
			if _, dupErr := p.checkExisting(ctx, newID, fp); dupErr != nil {
				return "", p.reject(kind, dupErr)
			}
			return newID, nil
		}
		return "", p.reject(kind, err)
	}
	p.committed(ctx, actor, tx, plan, models.AuditTransactionReversed)
	return newID, nil
}

// requireUnfrozen fails when any donation, payout or campaign escrow the
// transaction touched is held by an open dispute.
func (p *TransactionPoster) requireUnfrozen(ctx context.Context, tx *models.Transaction) error {
	checked := map[string]bool{}
	for _, e := range tx.Entries {
		m := e.Metadata
		if m.DonationID != "" && !checked["donation:"+m.DonationID] {
			checked["donation:"+m.DonationID] = true
			frozen, err := p.disputes.IsFrozen(ctx, models.DisputeEntityDonation, m.DonationID)
			if err != nil {
				return err
			}
			if frozen {
				return fmt.Errorf("%w: donation %s is frozen pending dispute resolution", models.ErrEscrowLocked, m.DonationID)
			}
		}
		if m.PayoutID != "" && !checked["payout:"+m.PayoutID] {
			checked["payout:"+m.PayoutID] = true
			frozen, err := p.disputes.IsFrozen(ctx, models.DisputeEntityPayout, m.PayoutID)
			if err != nil {
				return err
			}
			if frozen {
				return fmt.Errorf("%w: payout %s is frozen pending dispute resolution", models.ErrPayoutLocked, m.PayoutID)
			}
		}
		if e.Account == models.AccountCampaignEscrow && m.CampaignID != uuid.Nil && !checked["campaign:"+m.CampaignID.String()] {
			checked["campaign:"+m.CampaignID.String()] = true
			frozen, err := p.disputes.HasFrozenForCampaign(ctx, m.CampaignID)
			if err != nil {
				return err
			}
			if frozen {
				return fmt.Errorf("%w: campaign %s escrow is frozen pending dispute resolution", models.ErrEscrowLocked, m.CampaignID)
			}
		}
	}
	return nil
}

// checkExisting reports whether txID was already committed. A stored
// transaction with a different fingerprint is an idempotency conflict.
func (p *TransactionPoster) checkExisting(ctx context.Context, txID, fp string) (bool, error) {
	existing, err := p.ledger.GetTransaction(ctx, txID)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if existing.Fingerprint != fp {
		return true, fmt.Errorf("%w: %s", models.ErrIdempotencyConflict, txID)
	}
	p.metrics.Postings.WithLabelValues(string(existing.Type), "replayed").Inc()
	p.log.Debug("transaction already posted", zap.String("transaction_id", txID))
	return true, nil
}

func (p *TransactionPoster) commit(ctx context.Context, tx models.Transaction, plan *posting) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if plan.disputeID != uuid.Nil {
		if err := p.disputes.ClaimSettlement(ctx, plan.disputeID, tx.ID); err != nil {
			return err
		}
	}
	err := p.ledger.Append(ctx, tx, plan.guards...)
	if err != nil && plan.disputeID != uuid.Nil && !errors.Is(err, models.ErrDuplicateTransaction) {
		if relErr := p.disputes.ReleaseSettlement(context.WithoutCancel(ctx), plan.disputeID, tx.ID); relErr != nil {
			p.log.Error("failed to release dispute settlement claim",
				zap.String("dispute_id", plan.disputeID.String()),
				zap.String("transaction_id", tx.ID),
				zap.Error(relErr),
			)
		}
	}
	return err
}

func (p *TransactionPoster) committed(ctx context.Context, actor models.Actor, tx models.Transaction, plan *posting, action string) {
	ctx = context.WithoutCancel(ctx)
	p.balances.Invalidate(ctx, tx.Accounts()...)
	p.metrics.Postings.WithLabelValues(string(tx.Type), "committed").Inc()

	meta := map[string]any{
		"transaction_id": tx.ID,
		"event_type":     string(tx.Type),
		"amount":         plan.amount.String(),
		"currency":       plan.currency,
		"rows":           len(tx.Entries),
	}
	if plan.campaignID != uuid.Nil {
		meta["campaign_id"] = plan.campaignID.String()
	}
	if tx.ReversalOf != "" {
		meta["reversal_of"] = tx.ReversalOf
	}
	if plan.disputeID != uuid.Nil {
		meta["dispute_id"] = plan.disputeID.String()
	}
	p.auditor.Record(models.AuditLog{
		ActorUserID: actor.Ref(),
		ActorType:   actor.Role,
		Action:      action,
		EntityType:  "ledger_transaction",
		EntityID:    tx.ID,
		Meta:        meta,
	})
	p.log.Info("transaction posted",
		zap.String("transaction_id", tx.ID),
		zap.String("event_type", string(tx.Type)),
		zap.String("amount", plan.amount.String()),
		zap.String("currency", plan.currency),
	)
}

func (p *TransactionPoster) reject(kind models.EventType, err error) error {
	p.metrics.Rejections.WithLabelValues(string(kind), reasonOf(err)).Inc()
	if models.IsRetryable(err) {
		p.log.Warn("posting failed", zap.String("event_type", string(kind)), zap.Error(err))
	} else {
		p.log.Debug("posting rejected", zap.String("event_type", string(kind)), zap.Error(err))
	}
	return err
}

func (p *TransactionPoster) campaign(ctx context.Context, id uuid.UUID, currency string) (*models.Campaign, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: campaign id is required", models.ErrInvalidInput)
	}
	c, err := p.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Currency != currency {
		return nil, fmt.Errorf("%w: campaign %s is in %s, not %s", models.ErrInvalidInput, id, c.Currency, currency)
	}
	return c, nil
}

func (p *TransactionPoster) planDonation(ctx context.Context, txID string, e models.Donation) (*posting, error) {
	if err := positive(e.Amount); err != nil {
		return nil, err
	}
	if strings.TrimSpace(e.DonationID) == "" {
		return nil, fmt.Errorf("%w: donation id is required", models.ErrInvalidInput)
	}
	if e.FromWallet && e.DonorID == uuid.Nil {
		return nil, fmt.Errorf("%w: wallet donations need a donor", models.ErrInvalidInput)
	}
	c, err := p.campaign(ctx, e.CampaignID, e.Currency)
	if err != nil {
		return nil, err
	}
	if !c.AcceptsDonations() {
		return nil, fmt.Errorf("%w: campaign %s is not accepting donations (%s, %s)",
			models.ErrInvalidState, c.ID, c.Status, c.AdminStatus)
	}

	meta := models.Metadata{CampaignID: c.ID, DonorID: e.DonorID, DonationID: e.DonationID}
	source := models.AccountPaymentGatewayClearing
	if e.FromWallet {
		source = models.AccountUserWallet
	}
	entries := []models.LedgerEntry{
		debit(txID, source, e.Amount, e.Currency, meta),
		credit(txID, models.AccountCampaignEscrow, e.Amount, e.Currency, meta),
	}
	return &posting{
		entries:    entries,
		guards:     guardsFor(entries),
		campaignID: c.ID,
		amount:     e.Amount,
		currency:   e.Currency,
	}, nil
}

func (p *TransactionPoster) planFee(ctx context.Context, txID string, e models.FeeDeduction) (*posting, error) {
	if err := positive(e.Amount); err != nil {
		return nil, err
	}
	if e.VAT.IsNegative() || e.WHT.IsNegative() {
		return nil, fmt.Errorf("%w: taxes cannot be negative", models.ErrInvalidInput)
	}
	for _, tax := range []decimal.Decimal{e.VAT, e.WHT} {
		if err := models.CheckScale(tax); err != nil {
			return nil, err
		}
	}
	net := e.Amount.Sub(e.VAT).Sub(e.WHT)
	if net.IsNegative() {
		return nil, fmt.Errorf("%w: taxes %s exceed fee %s", models.ErrInvalidInput, e.VAT.Add(e.WHT), e.Amount)
	}
	c, err := p.campaign(ctx, e.CampaignID, e.Currency)
	if err != nil {
		return nil, err
	}

	meta := models.Metadata{CampaignID: c.ID}
	entries := []models.LedgerEntry{debit(txID, models.AccountCampaignEscrow, e.Amount, e.Currency, meta)}
	if net.IsPositive() {
		entries = append(entries, credit(txID, models.AccountPlatformRevenue, net, e.Currency, meta))
	}
	if e.VAT.IsPositive() {
		entries = append(entries, credit(txID, models.AccountTaxPayableVAT, e.VAT, e.Currency, meta))
	}
	if e.WHT.IsPositive() {
		entries = append(entries, credit(txID, models.AccountTaxPayableWHT, e.WHT, e.Currency, meta))
	}
	return &posting{
		entries:    entries,
		guards:     guardsFor(entries),
		campaignID: c.ID,
		amount:     e.Amount,
		currency:   e.Currency,
	}, nil
}

func (p *TransactionPoster) planRelease(ctx context.Context, txID string, e models.EscrowRelease) (*posting, error) {
	if err := positive(e.Amount); err != nil {
		return nil, err
	}
	c, err := p.campaign(ctx, e.CampaignID, e.Currency)
	if err != nil {
		return nil, err
	}
	if !c.HasProvider() {
		return nil, fmt.Errorf("%w: campaign %s has no provider assigned", models.ErrInvalidState, c.ID)
	}
	if e.DisputeID != uuid.Nil {
		d, err := p.disputes.Settlement(ctx, e.DisputeID, models.ResolutionRelease)
		if err != nil {
			return nil, err
		}
		if d.EntityType != models.DisputeEntityDonation || d.CampaignID != c.ID {
			return nil, fmt.Errorf("%w: dispute %s does not concern campaign %s", models.ErrInvalidInput, d.ID, c.ID)
		}
	}
	if err := p.escrow.RequireReleasable(ctx, c.ID); err != nil {
		return nil, err
	}

	meta := models.Metadata{CampaignID: c.ID, ProviderID: *c.ProviderID, DisputeID: e.DisputeID}
	entries := []models.LedgerEntry{
		debit(txID, models.AccountCampaignEscrow, e.Amount, e.Currency, meta),
		credit(txID, models.AccountProviderBalance, e.Amount, e.Currency, meta),
	}
	return &posting{
		entries:    entries,
		guards:     guardsFor(entries),
		disputeID:  e.DisputeID,
		campaignID: c.ID,
		amount:     e.Amount,
		currency:   e.Currency,
	}, nil
}

func (p *TransactionPoster) planRefund(ctx context.Context, txID string, e models.Refund) (*posting, error) {
	if err := positive(e.Amount); err != nil {
		return nil, err
	}
	if !e.Stage.Valid() {
		return nil, fmt.Errorf("%w: unknown refund stage %q", models.ErrInvalidInput, e.Stage)
	}
	c, err := p.campaign(ctx, e.CampaignID, e.Currency)
	if err != nil {
		return nil, err
	}
	meta := models.Metadata{CampaignID: c.ID, DonorID: e.DonorID, DonationID: e.DonationID, DisputeID: e.DisputeID}

	if e.Stage == models.RefundSettle {
		entries := []models.LedgerEntry{
			debit(txID, models.AccountRefundLiability, e.Amount, e.Currency, meta),
			credit(txID, models.AccountPaymentGatewayClearing, e.Amount, e.Currency, meta),
		}
		return &posting{
			entries:    entries,
			guards:     guardsFor(entries),
			campaignID: c.ID,
			amount:     e.Amount,
			currency:   e.Currency,
		}, nil
	}

	if strings.TrimSpace(e.DonationID) == "" {
		return nil, fmt.Errorf("%w: donation id is required", models.ErrInvalidInput)
	}
	if e.DisputeID != uuid.Nil {
		d, err := p.disputes.Settlement(ctx, e.DisputeID, models.ResolutionRefund)
		if err != nil {
			return nil, err
		}
		if d.EntityType != models.DisputeEntityDonation || d.EntityID != e.DonationID {
			return nil, fmt.Errorf("%w: dispute %s does not concern donation %s", models.ErrInvalidInput, d.ID, e.DonationID)
		}
	} else {
		if c.Status != models.CampaignStatusCancelled {
			return nil, fmt.Errorf("%w: refunds need a cancelled campaign or a dispute resolved with REFUND", models.ErrInvalidState)
		}
		frozen, err := p.disputes.IsFrozen(ctx, models.DisputeEntityDonation, e.DonationID)
		if err != nil {
			return nil, err
		}
		if frozen {
			return nil, fmt.Errorf("%w: donation %s is frozen pending dispute resolution", models.ErrEscrowLocked, e.DonationID)
		}
	}

	entries := []models.LedgerEntry{
		debit(txID, models.AccountCampaignEscrow, e.Amount, e.Currency, meta),
		credit(txID, models.AccountRefundLiability, e.Amount, e.Currency, meta),
	}
	if e.Stage == models.RefundDirect {
		entries = append(entries,
			debit(txID, models.AccountRefundLiability, e.Amount, e.Currency, meta),
			credit(txID, models.AccountPaymentGatewayClearing, e.Amount, e.Currency, meta),
		)
	}
	guards := append(guardsFor(entries), models.BalanceGuard{
		Account: models.AccountCampaignEscrow,
		Filter:  models.EntryFilter{Currency: e.Currency, CampaignID: c.ID, DonationID: e.DonationID},
	})
	return &posting{
		entries:    entries,
		guards:     guards,
		disputeID:  e.DisputeID,
		campaignID: c.ID,
		amount:     e.Amount,
		currency:   e.Currency,
	}, nil
}

func (p *TransactionPoster) planPayout(ctx context.Context, txID string, actor models.Actor, e models.Payout) (*posting, error) {
	if err := positive(e.Amount); err != nil {
		return nil, err
	}
	if e.ProviderID == uuid.Nil || strings.TrimSpace(e.PayoutID) == "" {
		return nil, fmt.Errorf("%w: provider id and payout id are required", models.ErrInvalidInput)
	}
	if actor.Role == rbac.RoleProvider && actor.ID != e.ProviderID {
		return nil, fmt.Errorf("%w: providers can only withdraw their own balance", models.ErrNotAuthorized)
	}

	frozen, err := p.disputes.IsFrozen(ctx, models.DisputeEntityPayout, e.PayoutID)
	if err != nil {
		return nil, err
	}
	if frozen {
		return nil, fmt.Errorf("%w: payout %s is frozen pending dispute resolution", models.ErrPayoutLocked, e.PayoutID)
	}
	if e.DisputeID != uuid.Nil {
		d, err := p.disputes.Settlement(ctx, e.DisputeID, models.ResolutionRelease)
		if err != nil {
			return nil, err
		}
		if d.EntityType != models.DisputeEntityPayout || d.EntityID != e.PayoutID {
			return nil, fmt.Errorf("%w: dispute %s does not concern payout %s", models.ErrInvalidInput, d.ID, e.PayoutID)
		}
	}

	available, err := p.balances.BalanceOf(ctx, models.AccountProviderBalance, models.EntryFilter{Currency: e.Currency, ProviderID: e.ProviderID})
	if err != nil {
		return nil, err
	}
	if available.LessThan(e.Amount) {
		return nil, fmt.Errorf("%w: provider balance %s %s is below %s", models.ErrInsufficientBalance, available, e.Currency, e.Amount)
	}

	meta := models.Metadata{ProviderID: e.ProviderID, PayoutID: e.PayoutID, DisputeID: e.DisputeID}
	entries := []models.LedgerEntry{
		debit(txID, models.AccountProviderBalance, e.Amount, e.Currency, meta),
		credit(txID, models.AccountPaymentGatewayClearing, e.Amount, e.Currency, meta),
	}
	return &posting{
		entries:   entries,
		guards:    guardsFor(entries),
		disputeID: e.DisputeID,
		amount:    e.Amount,
		currency:  e.Currency,
	}, nil
}

func (p *TransactionPoster) planTopUp(txID string, e models.WalletTopUp) (*posting, error) {
	if err := positive(e.Amount); err != nil {
		return nil, err
	}
	if e.DonorID == uuid.Nil {
		return nil, fmt.Errorf("%w: donor id is required", models.ErrInvalidInput)
	}
	meta := models.Metadata{DonorID: e.DonorID}
	return &posting{
		entries: []models.LedgerEntry{
			debit(txID, models.AccountPaymentGatewayClearing, e.Amount, e.Currency, meta),
			credit(txID, models.AccountUserWallet, e.Amount, e.Currency, meta),
		},
		amount:   e.Amount,
		currency: e.Currency,
	}, nil
}

// normalize fills the default currency and upper-cases currency codes so
// equivalent requests fingerprint the same.
func (p *TransactionPoster) normalize(ev models.BusinessEvent) models.BusinessEvent {
	cur := func(c string) string {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			return p.cfg.DefaultCurrency
		}
		return c
	}
	switch e := ev.(type) {
	case models.Donation:
		e.Currency = cur(e.Currency)
		return e
	case models.FeeDeduction:
		e.Currency = cur(e.Currency)
		return e
	case models.EscrowRelease:
		e.Currency = cur(e.Currency)
		return e
	case models.Refund:
		e.Currency = cur(e.Currency)
		if e.Stage == "" {
			e.Stage = models.RefundDirect
		}
		return e
	case models.Payout:
		e.Currency = cur(e.Currency)
		return e
	case models.WalletTopUp:
		e.Currency = cur(e.Currency)
		return e
	}
	return ev
}

func fingerprint(kind models.EventType, payload any) (string, error) {
	data, err := json.Marshal(struct {
		Type    models.EventType `json:"type"`
		Payload any              `json:"payload"`
	}{kind, payload})
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func permissionFor(kind models.EventType) string {
	switch kind {
	case models.EventDonation:
		return rbac.PermRecordDonation
	case models.EventFeeDeduction:
		return rbac.PermDeductFee
	case models.EventEscrowRelease:
		return rbac.PermReleaseEscrow
	case models.EventRefund:
		return rbac.PermRefund
	case models.EventPayout:
		return rbac.PermRequestPayout
	case models.EventWalletTopUp:
		return rbac.PermTopUpWallet
	case models.EventReversal:
		return rbac.PermReverse
	}
	return ""
}

// guardsFor returns one non-negative guard per scoped account a posting
// debits: donor wallets, campaign escrow and refund liability, provider
// balances.
func guardsFor(entries []models.LedgerEntry) []models.BalanceGuard {
	seen := map[string]bool{}
	var out []models.BalanceGuard
	for _, e := range entries {
		if !e.Debit.IsPositive() {
			continue
		}
		f := models.EntryFilter{Currency: e.Currency}
		switch e.Account {
		case models.AccountUserWallet:
			f.DonorID = e.Metadata.DonorID
		case models.AccountCampaignEscrow, models.AccountRefundLiability:
			f.CampaignID = e.Metadata.CampaignID
		case models.AccountProviderBalance:
			f.ProviderID = e.Metadata.ProviderID
		default:
			continue
		}
		g := models.BalanceGuard{Account: e.Account, Filter: f}
		if !seen[g.Key()] {
			seen[g.Key()] = true
			out = append(out, g)
		}
	}
	return out
}

func positive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", models.ErrInvalidInput, amount)
	}
	return models.CheckScale(amount)
}

func debit(txID string, account models.Account, amount decimal.Decimal, currency string, meta models.Metadata) models.LedgerEntry {
	meta.Version = models.MetadataVersion
	return models.LedgerEntry{TransactionID: txID, Account: account, Debit: amount, Credit: decimal.Zero, Currency: currency, Metadata: meta}
}

func credit(txID string, account models.Account, amount decimal.Decimal, currency string, meta models.Metadata) models.LedgerEntry {
	meta.Version = models.MetadataVersion
	return models.LedgerEntry{TransactionID: txID, Account: account, Debit: decimal.Zero, Credit: amount, Currency: currency, Metadata: meta}
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, models.ErrImbalancedTransaction):
		return "imbalanced"
	case errors.Is(err, models.ErrIdempotencyConflict):
		return "idempotency_conflict"
	case errors.Is(err, models.ErrDuplicateTransaction):
		return "duplicate"
	case errors.Is(err, models.ErrEscrowLocked):
		return "escrow_locked"
	case errors.Is(err, models.ErrPayoutLocked):
		return "payout_locked"
	case errors.Is(err, models.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, models.ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, models.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, models.ErrStoreUnavailable):
		return "store_unavailable"
	}
	return "other"
}
