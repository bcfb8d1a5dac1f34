package services

import (
	"context"

	"github.com/directaid/backend/internal/metrics"
	"github.com/directaid/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reconciler sweeps the ledger for broken invariants and the balance cache
// for drift. It runs from the worker.
type Reconciler struct {
	ledger          LedgerStore
	campaigns       CampaignStore
	balances        *BalanceCalculator
	defaultCurrency string
	metrics         *metrics.Metrics
	log             *zap.Logger
}

func NewReconciler(ledger LedgerStore, campaigns CampaignStore, balances *BalanceCalculator, defaultCurrency string, m *metrics.Metrics, log *zap.Logger) *Reconciler {
	return &Reconciler{
		ledger:          ledger,
		campaigns:       campaigns,
		balances:        balances,
		defaultCurrency: defaultCurrency,
		metrics:         m,
		log:             log,
	}
}

// VerifyInvariants returns the ids of transactions whose debits and credits
// differ in some currency. The store rejects such transactions, so any hit
// means data was changed outside the poster.
func (r *Reconciler) VerifyInvariants(ctx context.Context) ([]string, error) {
	ids, err := r.ledger.ImbalancedTransactions(ctx)
	if err != nil {
		return nil, err
	}
	r.metrics.ImbalancedSeen.Set(float64(len(ids)))
	for _, id := range ids {
		r.log.Error("imbalanced transaction in ledger", zap.String("transaction_id", id))
	}
	return ids, nil
}

type scope struct {
	account models.Account
	filter  models.EntryFilter
}

// CheckCache compares cached balances with a full recomputation for the
// platform accounts and every campaign's escrow and provider. Diverging
// accounts are invalidated. It returns the number of divergences.
func (r *Reconciler) CheckCache(ctx context.Context) (int, error) {
	var scopes []scope
	for _, acc := range models.ChartOfAccounts {
		scopes = append(scopes, scope{acc, models.EntryFilter{Currency: r.defaultCurrency}})
	}

	const pageSize = 100
	seenProviders := map[uuid.UUID]bool{}
	for offset := 0; ; offset += pageSize {
		page, err := r.campaigns.List(ctx, models.CampaignFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return 0, err
		}
		for _, c := range page {
			scopes = append(scopes,
				scope{models.AccountCampaignEscrow, models.EntryFilter{Currency: c.Currency, CampaignID: c.ID}},
				scope{models.AccountRefundLiability, models.EntryFilter{Currency: c.Currency, CampaignID: c.ID}},
			)
			if c.HasProvider() && !seenProviders[*c.ProviderID] {
				seenProviders[*c.ProviderID] = true
				scopes = append(scopes, scope{models.AccountProviderBalance, models.EntryFilter{Currency: c.Currency, ProviderID: *c.ProviderID}})
			}
		}
		if len(page) < pageSize {
			break
		}
	}

	drift := 0
	for _, s := range scopes {
		if err := ctx.Err(); err != nil {
			return drift, err
		}
		cached, ok, err := r.balances.Cached(ctx, s.account, s.filter)
		if err != nil {
			r.log.Warn("balance cache read failed", zap.String("account", s.account.String()), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		actual, err := r.balances.Replay(ctx, s.account, s.filter)
		if err != nil {
			return drift, err
		}
		if cached.Equal(actual) {
			continue
		}
		drift++
		r.metrics.BalanceDrift.WithLabelValues(s.account.String()).Inc()
		r.log.Error("balance cache drift",
			zap.String("account", s.account.String()),
			zap.String("scope", s.filter.Key()),
			zap.String("cached", cached.String()),
			zap.String("ledger", actual.String()),
		)
		r.balances.Invalidate(ctx, s.account)
	}
	return drift, nil
}
