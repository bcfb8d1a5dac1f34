// Package memory holds in-process implementations of the service stores.
// They back the test suite and the STORE_DRIVER=memory mode of the binaries.
package memory

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/directaid/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerStore keeps the posting log in a slice guarded by one mutex, which
// makes every Append atomic and linearizable.
type LedgerStore struct {
	mu       sync.RWMutex
	entries  []models.LedgerEntry
	txs      map[string]models.Transaction
	reversed map[string]string
	seq      int64
	now      func() time.Time
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		txs:      make(map[string]models.Transaction),
		reversed: make(map[string]string),
		now:      time.Now,
	}
}

// SetClock overrides the commit timestamp source.
func (s *LedgerStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *LedgerStore) Append(ctx context.Context, tx models.Transaction, guards ...models.BalanceGuard) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if err := tx.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.txs[tx.ID]; exists {
		return fmt.Errorf("%w: %s", models.ErrDuplicateTransaction, tx.ID)
	}
	if tx.ReversalOf != "" {
		if by, done := s.reversed[tx.ReversalOf]; done {
			return fmt.Errorf("%w: transaction %s already reversed by %s", models.ErrInvalidState, tx.ReversalOf, by)
		}
	}

	now := s.now().UTC()
	rows := make([]models.LedgerEntry, len(tx.Entries))
	for i, e := range tx.Entries {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		e.CreatedAt = now
		rows[i] = e
	}

	for _, g := range guards {
		bal := s.sumLocked(g.Account, g.Filter)
		for _, e := range rows {
			if e.Account == g.Account && g.Filter.Matches(e) {
				bal = bal.Add(e.Amount())
			}
		}
		if bal.IsNegative() {
			return fmt.Errorf("%w: %s would drop to %s", models.ErrInsufficientBalance, g.Account, bal)
		}
	}

	for i := range rows {
		s.seq++
		rows[i].Seq = s.seq
	}
	s.entries = append(s.entries, rows...)

	stored := tx
	stored.CreatedAt = now
	stored.Entries = rows
	s.txs[tx.ID] = stored
	if tx.ReversalOf != "" {
		s.reversed[tx.ReversalOf] = tx.ID
	}
	return nil
}

func (s *LedgerStore) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txs[id]
	if !ok {
		return nil, fmt.Errorf("%w: transaction %s", models.ErrNotFound, id)
	}
	tx.Entries = append([]models.LedgerEntry(nil), tx.Entries...)
	return &tx, nil
}

// QueryByAccount snapshots the matching rows when iteration starts, so every
// range over the returned sequence sees the ledger as of that moment.
func (s *LedgerStore) QueryByAccount(ctx context.Context, account models.Account, f models.EntryFilter) iter.Seq2[models.LedgerEntry, error] {
	return s.query(ctx, func(e models.LedgerEntry) bool {
		return e.Account == account && f.Matches(e)
	})
}

func (s *LedgerStore) Scan(ctx context.Context, f models.EntryFilter) iter.Seq2[models.LedgerEntry, error] {
	return s.query(ctx, f.Matches)
}

func (s *LedgerStore) query(ctx context.Context, match func(models.LedgerEntry) bool) iter.Seq2[models.LedgerEntry, error] {
	return func(yield func(models.LedgerEntry, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(models.LedgerEntry{}, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err))
			return
		}
		s.mu.RLock()
		var snapshot []models.LedgerEntry
		for _, e := range s.entries {
			if match(e) {
				snapshot = append(snapshot, e)
			}
		}
		s.mu.RUnlock()

		for _, e := range snapshot {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (s *LedgerStore) Sum(ctx context.Context, account models.Account, f models.EntryFilter) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sumLocked(account, f), nil
}

func (s *LedgerStore) sumLocked(account models.Account, f models.EntryFilter) decimal.Decimal {
	total := decimal.Zero
	for _, e := range s.entries {
		if e.Account == account && f.Matches(e) {
			total = total.Add(e.Amount())
		}
	}
	return total
}

func (s *LedgerStore) ImbalancedTransactions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct{ tx, cur string }
	net := map[key]decimal.Decimal{}
	for _, e := range s.entries {
		k := key{e.TransactionID, e.Currency}
		net[k] = net[k].Add(e.Debit).Sub(e.Credit)
	}
	seen := map[string]bool{}
	var out []string
	for k, v := range net {
		if !v.IsZero() && !seen[k.tx] {
			seen[k.tx] = true
			out = append(out, k.tx)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Len returns the number of committed rows.
func (s *LedgerStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
