package repositories

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/directaid/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const ledgerPageSize = 500

const entryColumns = `seq, id, transaction_id, account, debit::text, credit::text, currency, created_at,
	metadata_version, campaign_id, provider_id, donor_id, donation_id, payout_id, dispute_id,
	reversal_of, note, extra`

type LedgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Append writes tx and its rows in one database transaction. It serializes
// on the transaction id and on every guarded scope with advisory locks taken
// in sorted order.
func (r *LedgerRepo) Append(ctx context.Context, tx models.Transaction, guards ...models.BalanceGuard) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	dbTx, err := r.pool.Begin(ctx)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = dbTx.Rollback(ctx) }()

	locks := []string{"ledger:tx:" + tx.ID}
	if tx.ReversalOf != "" {
		locks = append(locks, "ledger:reversal:"+tx.ReversalOf)
	}
	for _, g := range guards {
		locks = append(locks, "ledger:guard:"+g.Key())
	}
	slices.Sort(locks)
	for _, key := range slices.Compact(locks) {
		if _, err := dbTx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return classify(err)
		}
	}

	var exists bool
	if err := dbTx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM ledger_transactions WHERE id = $1)`, tx.ID).Scan(&exists); err != nil {
		return classify(err)
	}
	if exists {
		return fmt.Errorf("%w: %s", models.ErrDuplicateTransaction, tx.ID)
	}
	if tx.ReversalOf != "" {
		var by string
		err := dbTx.QueryRow(ctx, `SELECT id FROM ledger_transactions WHERE reversal_of = $1`, tx.ReversalOf).Scan(&by)
		if err == nil {
			return fmt.Errorf("%w: transaction %s already reversed by %s", models.ErrInvalidState, tx.ReversalOf, by)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return classify(err)
		}
	}

	var createdAt time.Time
	err = dbTx.QueryRow(ctx, `
		INSERT INTO ledger_transactions (id, event_type, fingerprint, reversal_of)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, tx.ID, string(tx.Type), tx.Fingerprint, nullString(tx.ReversalOf)).Scan(&createdAt)
	if err != nil {
		return r.insertError(tx, err)
	}

	batch := &pgx.Batch{}
	for _, e := range tx.Entries {
		id := e.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		m := e.Metadata
		batch.Queue(`
			INSERT INTO ledger_entries (id, transaction_id, account, debit, credit, currency, created_at,
				metadata_version, campaign_id, provider_id, donor_id, donation_id, payout_id, dispute_id,
				reversal_of, note, extra)
			VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`, id, tx.ID, string(e.Account), e.Debit.String(), e.Credit.String(), e.Currency, createdAt,
			m.Version, nullUUID(m.CampaignID), nullUUID(m.ProviderID), nullUUID(m.DonorID),
			nullString(m.DonationID), nullString(m.PayoutID), nullUUID(m.DisputeID),
			nullString(m.ReversalOf), nullString(m.Note), m.Extra)
	}
	br := dbTx.SendBatch(ctx, batch)
	for range tx.Entries {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return classify(err)
		}
	}
	if err := br.Close(); err != nil {
		return classify(err)
	}

	for _, g := range guards {
		bal, err := sum(ctx, dbTx, g.Account, g.Filter)
		if err != nil {
			return err
		}
		if bal.IsNegative() {
			return fmt.Errorf("%w: %s would drop to %s", models.ErrInsufficientBalance, g.Account, bal)
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return r.insertError(tx, err)
	}
	return nil
}

func (r *LedgerRepo) insertError(tx models.Transaction, err error) error {
	if constraint, ok := uniqueViolation(err); ok {
		if strings.Contains(constraint, "reversal_of") {
			return fmt.Errorf("%w: transaction %s already reversed", models.ErrInvalidState, tx.ReversalOf)
		}
		return fmt.Errorf("%w: %s", models.ErrDuplicateTransaction, tx.ID)
	}
	return classify(err)
}

func (r *LedgerRepo) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	var tx models.Transaction
	var eventType string
	var reversalOf *string
	err := r.pool.QueryRow(ctx, `
		SELECT id, event_type, fingerprint, reversal_of, created_at
		FROM ledger_transactions WHERE id = $1
	`, id).Scan(&tx.ID, &eventType, &tx.Fingerprint, &reversalOf, &tx.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, classify(err)
	}
	tx.Type = models.EventType(eventType)
	tx.ReversalOf = deref(reversalOf)

	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE transaction_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, classify(err)
	}
	tx.Entries, err = pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, classify(err)
	}
	return &tx, nil
}

func (r *LedgerRepo) QueryByAccount(ctx context.Context, account models.Account, f models.EntryFilter) iter.Seq2[models.LedgerEntry, error] {
	return r.iterate(ctx, &account, f)
}

func (r *LedgerRepo) Scan(ctx context.Context, f models.EntryFilter) iter.Seq2[models.LedgerEntry, error] {
	return r.iterate(ctx, nil, f)
}

// iterate pages through matching rows by seq. Each page is read fully before
// rows are yielded, so no connection is held while the caller runs.
func (r *LedgerRepo) iterate(ctx context.Context, account *models.Account, f models.EntryFilter) iter.Seq2[models.LedgerEntry, error] {
	return func(yield func(models.LedgerEntry, error) bool) {
		var last int64
		for {
			where, args := entryWhere(account, f)
			where = append(where, fmt.Sprintf("seq > $%d", len(args)+1))
			args = append(args, last, ledgerPageSize)
			query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE ` + strings.Join(where, " AND ") +
				fmt.Sprintf(" ORDER BY seq LIMIT $%d", len(args))

			rows, err := r.pool.Query(ctx, query, args...)
			if err != nil {
				yield(models.LedgerEntry{}, classify(err))
				return
			}
			page, err := pgx.CollectRows(rows, scanEntry)
			if err != nil {
				yield(models.LedgerEntry{}, classify(err))
				return
			}
			for _, e := range page {
				if !yield(e, nil) {
					return
				}
				last = e.Seq
			}
			if len(page) < ledgerPageSize {
				return
			}
		}
	}
}

func (r *LedgerRepo) Sum(ctx context.Context, account models.Account, f models.EntryFilter) (decimal.Decimal, error) {
	return sum(ctx, r.pool, account, f)
}

func (r *LedgerRepo) ImbalancedTransactions(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT transaction_id FROM ledger_entries
		GROUP BY transaction_id, currency
		HAVING SUM(debit) <> SUM(credit)
		UNION
		SELECT t.id FROM ledger_transactions t
		LEFT JOIN ledger_entries e ON e.transaction_id = t.id
		GROUP BY t.id
		HAVING COUNT(e.seq) < 2
		ORDER BY 1
	`)
	if err != nil {
		return nil, classify(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, classify(err)
	}
	return ids, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func sum(ctx context.Context, q querier, account models.Account, f models.EntryFilter) (decimal.Decimal, error) {
	where, args := entryWhere(&account, f)
	var total string
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(credit - debit), 0)::text FROM ledger_entries WHERE `+strings.Join(where, " AND "),
		args...).Scan(&total)
	if err != nil {
		return decimal.Zero, classify(err)
	}
	return decimal.NewFromString(total)
}

func entryWhere(account *models.Account, f models.EntryFilter) ([]string, []any) {
	where := []string{"TRUE"}
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if account != nil {
		add("account = $%d", string(*account))
	}
	if f.Currency != "" {
		add("currency = $%d", f.Currency)
	}
	if f.CampaignID != uuid.Nil {
		add("campaign_id = $%d", f.CampaignID)
	}
	if f.ProviderID != uuid.Nil {
		add("provider_id = $%d", f.ProviderID)
	}
	if f.DonorID != uuid.Nil {
		add("donor_id = $%d", f.DonorID)
	}
	if f.DonationID != "" {
		add("donation_id = $%d", f.DonationID)
	}
	if f.PayoutID != "" {
		add("payout_id = $%d", f.PayoutID)
	}
	if f.DisputeID != uuid.Nil {
		add("dispute_id = $%d", f.DisputeID)
	}
	if f.TransactionID != "" {
		add("transaction_id = $%d", f.TransactionID)
	}
	if f.AsOf != nil {
		add("created_at <= $%d", *f.AsOf)
	}
	return where, args
}

func scanEntry(row pgx.CollectableRow) (models.LedgerEntry, error) {
	var e models.LedgerEntry
	var account, debit, credit string
	var campaignID, providerID, donorID, disputeID *uuid.UUID
	var donationID, payoutID, reversalOf, note *string
	err := row.Scan(&e.Seq, &e.ID, &e.TransactionID, &account, &debit, &credit, &e.Currency, &e.CreatedAt,
		&e.Metadata.Version, &campaignID, &providerID, &donorID, &donationID, &payoutID, &disputeID,
		&reversalOf, &note, &e.Metadata.Extra)
	if err != nil {
		return e, err
	}
	e.Account = models.Account(account)
	if e.Debit, err = decimal.NewFromString(debit); err != nil {
		return e, err
	}
	if e.Credit, err = decimal.NewFromString(credit); err != nil {
		return e, err
	}
	e.Metadata.CampaignID = deref(campaignID)
	e.Metadata.ProviderID = deref(providerID)
	e.Metadata.DonorID = deref(donorID)
	e.Metadata.DisputeID = deref(disputeID)
	e.Metadata.DonationID = deref(donationID)
	e.Metadata.PayoutID = deref(payoutID)
	e.Metadata.ReversalOf = deref(reversalOf)
	e.Metadata.Note = deref(note)
	return e, nil
}
