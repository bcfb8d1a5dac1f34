package services

import (
	"context"
	"iter"

	"github.com/directaid/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerStore is the append-only posting log. The Transaction Poster is its
// only writer.
type LedgerStore interface {
	Append(ctx context.Context, tx models.Transaction, guards ...models.BalanceGuard) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	QueryByAccount(ctx context.Context, account models.Account, f models.EntryFilter) iter.Seq2[models.LedgerEntry, error]
	Scan(ctx context.Context, f models.EntryFilter) iter.Seq2[models.LedgerEntry, error]
	Sum(ctx context.Context, account models.Account, f models.EntryFilter) (decimal.Decimal, error)
	ImbalancedTransactions(ctx context.Context) ([]string, error)
}

type CampaignStore interface {
	Create(ctx context.Context, c *models.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	List(ctx context.Context, f models.CampaignFilter) ([]models.Campaign, error)
	// UpdateStatus and UpdateAdminStatus are compare-and-set on the old value.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
	UpdateAdminStatus(ctx context.Context, id uuid.UUID, from, to string) error
	SetProvider(ctx context.Context, id uuid.UUID, providerID uuid.UUID) error
}

type ConfirmationStore interface {
	Get(ctx context.Context, campaignID uuid.UUID) (*models.CampaignConfirmation, error)
	// Transition moves the campaign from one status to another and fails with
	// models.ErrInvalidState when the current status is not from.
	Transition(ctx context.Context, campaignID uuid.UUID, from, to models.ConfirmationStatus) (*models.CampaignConfirmation, error)
}

type DisputeStore interface {
	Create(ctx context.Context, d *models.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	List(ctx context.Context, f models.DisputeFilter) ([]models.Dispute, error)
	// UpdateStatus is compare-and-set against the allowed source statuses.
	UpdateStatus(ctx context.Context, d *models.Dispute, from []models.DisputeStatus) error
	HasFrozen(ctx context.Context, entityType models.DisputeEntityType, entityID string) (bool, error)
	HasFrozenForCampaign(ctx context.Context, campaignID uuid.UUID) (bool, error)
	ClaimSettlement(ctx context.Context, id uuid.UUID, txID string) error
	ReleaseSettlement(ctx context.Context, id uuid.UUID, txID string) error
}

// AuditSink persists activity records.
type AuditSink interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

// BalanceCache holds derived balances. It is never the source of truth.
// Values are written under the generation observed before they were
// computed; Invalidate bumps the generation so a value computed before an
// append can never be served after it.
type BalanceCache interface {
	Generation(ctx context.Context, account models.Account) (int64, error)
	Get(ctx context.Context, account models.Account, gen int64, key string) (decimal.Decimal, bool, error)
	Set(ctx context.Context, account models.Account, gen int64, key string, v decimal.Decimal) error
	Invalidate(ctx context.Context, accounts ...models.Account) error
}
