package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MetadataVersion is bumped whenever a Metadata field changes meaning.
const MetadataVersion = 1

// AmountScale is the number of decimal places stored for every amount.
const AmountScale = 4

// CheckScale rejects amounts that cannot be stored without rounding.
func CheckScale(amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(AmountScale)) {
		return fmt.Errorf("%w: amount %s has more than %d decimal places", ErrInvalidInput, amount, AmountScale)
	}
	return nil
}

// Metadata is the closed set of references a ledger row may carry.
// uuid.Nil and "" mean "absent". Extra is for non-critical annotations only.
type Metadata struct {
	Version    int               `json:"v"`
	CampaignID uuid.UUID         `json:"campaign_id"`
	ProviderID uuid.UUID         `json:"provider_id"`
	DonorID    uuid.UUID         `json:"donor_id"`
	DonationID string            `json:"donation_id,omitempty"`
	PayoutID   string            `json:"payout_id,omitempty"`
	DisputeID  uuid.UUID         `json:"dispute_id"`
	ReversalOf string            `json:"reversal_of,omitempty"`
	Note       string            `json:"note,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// LedgerEntry is one immutable debit or credit row against one account.
type LedgerEntry struct {
	ID            uuid.UUID       `json:"id"`
	Seq           int64           `json:"seq"`
	TransactionID string          `json:"transaction_id"`
	Account       Account         `json:"account"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	Currency      string          `json:"currency"`
	CreatedAt     time.Time       `json:"created_at"`
	Metadata      Metadata        `json:"metadata"`
}

// Amount returns the signed effect of the row on its account balance
// (credit increases, debit decreases).
func (e LedgerEntry) Amount() decimal.Decimal {
	return e.Credit.Sub(e.Debit)
}

func (e LedgerEntry) Validate() error {
	if !e.Account.Valid() {
		return fmt.Errorf("%w: unknown account %q", ErrInvalidInput, e.Account)
	}
	if e.Currency == "" {
		return fmt.Errorf("%w: entry on %s has no currency", ErrInvalidInput, e.Account)
	}
	if e.Debit.IsNegative() || e.Credit.IsNegative() {
		return fmt.Errorf("%w: negative amount on %s", ErrInvalidInput, e.Account)
	}
	if e.Debit.IsZero() == e.Credit.IsZero() {
		return fmt.Errorf("%w: entry on %s must be exactly one of debit or credit", ErrInvalidInput, e.Account)
	}
	if err := CheckScale(e.Debit); err != nil {
		return err
	}
	return CheckScale(e.Credit)
}

// Transaction groups the rows of one business event. ID is supplied by the
// caller and doubles as the idempotency key.
type Transaction struct {
	ID          string        `json:"id"`
	Type        EventType     `json:"type"`
	Fingerprint string        `json:"fingerprint"`
	ReversalOf  string        `json:"reversal_of,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	Entries     []LedgerEntry `json:"entries"`
}

// Validate checks the row invariants and that debits equal credits per currency.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}
	if len(t.Entries) < 2 {
		return fmt.Errorf("%w: transaction %s has %d rows, need at least 2", ErrImbalancedTransaction, t.ID, len(t.Entries))
	}
	debits := map[string]decimal.Decimal{}
	credits := map[string]decimal.Decimal{}
	for _, e := range t.Entries {
		if e.TransactionID != t.ID {
			return fmt.Errorf("%w: row references transaction %q inside %q", ErrInvalidInput, e.TransactionID, t.ID)
		}
		if err := e.Validate(); err != nil {
			return err
		}
		debits[e.Currency] = debits[e.Currency].Add(e.Debit)
		credits[e.Currency] = credits[e.Currency].Add(e.Credit)
	}
	for _, cur := range t.Currencies() {
		if !debits[cur].Equal(credits[cur]) {
			return fmt.Errorf("%w: %s debits %s != credits %s in %s",
				ErrImbalancedTransaction, t.ID, debits[cur], credits[cur], cur)
		}
	}
	return nil
}

// Currencies returns the distinct currencies of the rows, sorted.
func (t Transaction) Currencies() []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range t.Entries {
		if !seen[e.Currency] {
			seen[e.Currency] = true
			out = append(out, e.Currency)
		}
	}
	sort.Strings(out)
	return out
}

// Accounts returns the distinct accounts touched by the transaction.
func (t Transaction) Accounts() []Account {
	seen := map[Account]bool{}
	var out []Account
	for _, e := range t.Entries {
		if !seen[e.Account] {
			seen[e.Account] = true
			out = append(out, e.Account)
		}
	}
	return out
}

// EntryFilter narrows ledger rows. Zero-valued fields match everything.
type EntryFilter struct {
	Currency      string
	CampaignID    uuid.UUID
	ProviderID    uuid.UUID
	DonorID       uuid.UUID
	DonationID    string
	PayoutID      string
	DisputeID     uuid.UUID
	TransactionID string
	AsOf          *time.Time
}

func (f EntryFilter) Matches(e LedgerEntry) bool {
	switch {
	case f.Currency != "" && e.Currency != f.Currency:
		return false
	case f.CampaignID != uuid.Nil && e.Metadata.CampaignID != f.CampaignID:
		return false
	case f.ProviderID != uuid.Nil && e.Metadata.ProviderID != f.ProviderID:
		return false
	case f.DonorID != uuid.Nil && e.Metadata.DonorID != f.DonorID:
		return false
	case f.DonationID != "" && e.Metadata.DonationID != f.DonationID:
		return false
	case f.PayoutID != "" && e.Metadata.PayoutID != f.PayoutID:
		return false
	case f.DisputeID != uuid.Nil && e.Metadata.DisputeID != f.DisputeID:
		return false
	case f.TransactionID != "" && e.TransactionID != f.TransactionID:
		return false
	case f.AsOf != nil && e.CreatedAt.After(*f.AsOf):
		return false
	}
	return true
}

// Key is a stable textual form of the filter, used for cache fields and
// advisory lock names. AsOf is deliberately part of it.
func (f EntryFilter) Key() string {
	var b strings.Builder
	b.WriteString("cur=" + f.Currency)
	if f.CampaignID != uuid.Nil {
		b.WriteString("|campaign=" + f.CampaignID.String())
	}
	if f.ProviderID != uuid.Nil {
		b.WriteString("|provider=" + f.ProviderID.String())
	}
	if f.DonorID != uuid.Nil {
		b.WriteString("|donor=" + f.DonorID.String())
	}
	if f.DonationID != "" {
		b.WriteString("|donation=" + f.DonationID)
	}
	if f.PayoutID != "" {
		b.WriteString("|payout=" + f.PayoutID)
	}
	if f.DisputeID != uuid.Nil {
		b.WriteString("|dispute=" + f.DisputeID.String())
	}
	if f.TransactionID != "" {
		b.WriteString("|tx=" + f.TransactionID)
	}
	if f.AsOf != nil {
		b.WriteString("|asof=" + f.AsOf.UTC().Format(time.RFC3339Nano))
	}
	return b.String()
}

// BalanceGuard asks the store to reject an append that would leave the
// balance of Account, restricted to Filter, below zero.
type BalanceGuard struct {
	Account Account
	Filter  EntryFilter
}

func (g BalanceGuard) Key() string {
	return string(g.Account) + "|" + g.Filter.Key()
}
