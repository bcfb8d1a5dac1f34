package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/directaid/backend/internal/metrics"
	"github.com/directaid/backend/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// BalanceCalculator derives balances from the ledger. The cache is optional
// and only serves "now" queries.
type BalanceCalculator struct {
	ledger          LedgerStore
	cache           BalanceCache
	group           singleflight.Group
	defaultCurrency string
	metrics         *metrics.Metrics
	log             *zap.Logger
}

func NewBalanceCalculator(ledger LedgerStore, cache BalanceCache, defaultCurrency string, m *metrics.Metrics, log *zap.Logger) *BalanceCalculator {
	return &BalanceCalculator{
		ledger:          ledger,
		cache:           cache,
		defaultCurrency: defaultCurrency,
		metrics:         m,
		log:             log,
	}
}

func (b *BalanceCalculator) normalize(account models.Account, f models.EntryFilter) (models.EntryFilter, error) {
	if !account.Valid() {
		return f, fmt.Errorf("%w: unknown account %q", models.ErrInvalidInput, account)
	}
	if f.Currency == "" {
		f.Currency = b.defaultCurrency
	}
	return f, nil
}

// BalanceOf returns credits minus debits of account over rows matching f.
// An account with no matching rows has balance zero.
func (b *BalanceCalculator) BalanceOf(ctx context.Context, account models.Account, f models.EntryFilter) (decimal.Decimal, error) {
	f, err := b.normalize(account, f)
	if err != nil {
		return decimal.Zero, err
	}
	if f.AsOf != nil || b.cache == nil {
		return b.ledger.Sum(ctx, account, f)
	}

	gen, err := b.cache.Generation(ctx, account)
	if err != nil {
		b.log.Warn("balance cache unavailable", zap.String("account", account.String()), zap.Error(err))
		return b.ledger.Sum(ctx, account, f)
	}
	key := f.Key()
	if v, ok, err := b.cache.Get(ctx, account, gen, key); err == nil && ok {
		b.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return v, nil
	}
	b.metrics.CacheLookups.WithLabelValues("miss").Inc()

	flightKey := account.String() + "#" + strconv.FormatInt(gen, 10) + "#" + key
	v, err, _ := b.group.Do(flightKey, func() (any, error) {
		sum, err := b.ledger.Sum(ctx, account, f)
		if err != nil {
			return nil, err
		}
		if err := b.cache.Set(ctx, account, gen, key, sum); err != nil {
			b.log.Warn("failed to cache balance", zap.String("account", account.String()), zap.Error(err))
		}
		return sum, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}

// Replay recomputes a balance by walking every matching row. It never
// touches the cache.
func (b *BalanceCalculator) Replay(ctx context.Context, account models.Account, f models.EntryFilter) (decimal.Decimal, error) {
	f, err := b.normalize(account, f)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for e, err := range b.ledger.QueryByAccount(ctx, account, f) {
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(e.Amount())
	}
	return total, nil
}

// Cached returns the cached value for the scope, if any.
func (b *BalanceCalculator) Cached(ctx context.Context, account models.Account, f models.EntryFilter) (decimal.Decimal, bool, error) {
	if b.cache == nil {
		return decimal.Zero, false, nil
	}
	f, err := b.normalize(account, f)
	if err != nil {
		return decimal.Zero, false, err
	}
	gen, err := b.cache.Generation(ctx, account)
	if err != nil {
		return decimal.Zero, false, err
	}
	return b.cache.Get(ctx, account, gen, f.Key())
}

// Snapshot returns the balance of every account in the chart for one scope.
func (b *BalanceCalculator) Snapshot(ctx context.Context, f models.EntryFilter) (map[models.Account]decimal.Decimal, error) {
	out := make(map[models.Account]decimal.Decimal, len(models.ChartOfAccounts))
	for _, acc := range models.ChartOfAccounts {
		v, err := b.BalanceOf(ctx, acc, f)
		if err != nil {
			return nil, err
		}
		out[acc] = v
	}
	return out, nil
}

func (b *BalanceCalculator) Invalidate(ctx context.Context, accounts ...models.Account) {
	if b.cache == nil || len(accounts) == 0 {
		return
	}
	if err := b.cache.Invalidate(ctx, accounts...); err != nil {
		b.log.Error("failed to invalidate balance cache", zap.Any("accounts", accounts), zap.Error(err))
	}
}
