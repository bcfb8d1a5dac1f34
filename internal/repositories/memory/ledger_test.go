package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/directaid/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func transfer(txID string, from, to models.Account, amount string, meta models.Metadata) models.Transaction {
	amt := decimal.RequireFromString(amount)
	return models.Transaction{
		ID:   txID,
		Type: models.EventDonation,
		Entries: []models.LedgerEntry{
			{TransactionID: txID, Account: from, Debit: amt, Currency: "NGN", Metadata: meta},
			{TransactionID: txID, Account: to, Credit: amt, Currency: "NGN", Metadata: meta},
		},
	}
}

func TestAppendAssignsSequence(t *testing.T) {
	s := NewLedgerStore()
	ctx := context.Background()
	meta := models.Metadata{CampaignID: uuid.New()}

	require.NoError(t, s.Append(ctx, transfer("t1", models.AccountPaymentGatewayClearing, models.AccountCampaignEscrow, "10", meta)))
	require.NoError(t, s.Append(ctx, transfer("t2", models.AccountPaymentGatewayClearing, models.AccountCampaignEscrow, "5", meta)))

	var seqs []int64
	for e, err := range s.Scan(ctx, models.EntryFilter{}) {
		require.NoError(t, err)
		seqs = append(seqs, e.Seq)
	}
	require.Equal(t, []int64{1, 2, 3, 4}, seqs)

	bal, err := s.Sum(ctx, models.AccountCampaignEscrow, models.EntryFilter{CampaignID: meta.CampaignID})
	require.NoError(t, err)
	require.True(t, bal.Equal(decimal.NewFromInt(15)), bal.String())

	err = s.Append(ctx, transfer("t1", models.AccountPaymentGatewayClearing, models.AccountCampaignEscrow, "10", meta))
	require.ErrorIs(t, err, models.ErrDuplicateTransaction)
	require.Equal(t, 4, s.Len())
}

func TestAppendRejectsImbalance(t *testing.T) {
	s := NewLedgerStore()
	tx := transfer("t1", models.AccountPaymentGatewayClearing, models.AccountCampaignEscrow, "10", models.Metadata{})
	tx.Entries[1].Credit = decimal.NewFromInt(9)

	require.ErrorIs(t, s.Append(context.Background(), tx), models.ErrImbalancedTransaction)
	require.Zero(t, s.Len())
}

func TestAppendGuard(t *testing.T) {
	s := NewLedgerStore()
	ctx := context.Background()
	campaign := models.Metadata{CampaignID: uuid.New()}
	guard := models.BalanceGuard{Account: models.AccountCampaignEscrow, Filter: models.EntryFilter{CampaignID: campaign.CampaignID}}

	require.NoError(t, s.Append(ctx, transfer("fund", models.AccountPaymentGatewayClearing, models.AccountCampaignEscrow, "100", campaign)))

	err := s.Append(ctx, transfer("over", models.AccountCampaignEscrow, models.AccountProviderBalance, "100.01", campaign), guard)
	require.ErrorIs(t, err, models.ErrInsufficientBalance)

	require.NoError(t, s.Append(ctx, transfer("all", models.AccountCampaignEscrow, models.AccountProviderBalance, "100", campaign), guard))
	bal, err := s.Sum(ctx, models.AccountCampaignEscrow, guard.Filter)
	require.NoError(t, err)
	require.True(t, bal.IsZero())
}

func TestConcurrentGuardedAppends(t *testing.T) {
	s := NewLedgerStore()
	ctx := context.Background()
	campaign := models.Metadata{CampaignID: uuid.New()}
	guard := models.BalanceGuard{Account: models.AccountCampaignEscrow, Filter: models.EntryFilter{CampaignID: campaign.CampaignID}}
	require.NoError(t, s.Append(ctx, transfer("fund", models.AccountPaymentGatewayClearing, models.AccountCampaignEscrow, "10", campaign)))

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx := transfer(uuid.NewString(), models.AccountCampaignEscrow, models.AccountProviderBalance, "1", campaign)
			if err := s.Append(ctx, tx, guard); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 10, ok)
	bal, err := s.Sum(ctx, models.AccountCampaignEscrow, guard.Filter)
	require.NoError(t, err)
	require.True(t, bal.IsZero(), bal.String())
}

func TestReversalOnlyOnce(t *testing.T) {
	s := NewLedgerStore()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, transfer("t1", models.AccountPaymentGatewayClearing, models.AccountCampaignEscrow, "10", models.Metadata{})))

	rev := transfer("r1", models.AccountCampaignEscrow, models.AccountPaymentGatewayClearing, "10", models.Metadata{ReversalOf: "t1"})
	rev.ReversalOf = "t1"
	require.NoError(t, s.Append(ctx, rev))

	again := transfer("r2", models.AccountCampaignEscrow, models.AccountPaymentGatewayClearing, "10", models.Metadata{ReversalOf: "t1"})
	again.ReversalOf = "t1"
	require.ErrorIs(t, s.Append(ctx, again), models.ErrInvalidState)
}

func TestAsOfBalance(t *testing.T) {
	s := NewLedgerStore()
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return clock })

	require.NoError(t, s.Append(ctx, transfer("t1", models.AccountPaymentGatewayClearing, models.AccountCampaignEscrow, "10", models.Metadata{})))
	cutoff := clock
	clock = clock.Add(time.Hour)
	require.NoError(t, s.Append(ctx, transfer("t2", models.AccountPaymentGatewayClearing, models.AccountCampaignEscrow, "7", models.Metadata{})))

	bal, err := s.Sum(ctx, models.AccountCampaignEscrow, models.EntryFilter{AsOf: &cutoff})
	require.NoError(t, err)
	require.True(t, bal.Equal(decimal.NewFromInt(10)), bal.String())

	tx, err := s.GetTransaction(ctx, "t2")
	require.NoError(t, err)
	require.Equal(t, clock, tx.CreatedAt)
	require.Len(t, tx.Entries, 2)
}

func TestCanceledContext(t *testing.T) {
	s := NewLedgerStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Append(ctx, transfer("t1", models.AccountPaymentGatewayClearing, models.AccountCampaignEscrow, "1", models.Metadata{}))
	require.ErrorIs(t, err, models.ErrStoreUnavailable)
	require.True(t, models.IsRetryable(err))
}
