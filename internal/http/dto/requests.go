package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Auth

type TokenRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
}

// Ledger postings. Amounts accept JSON strings or numbers.

type DonationWebhookRequest struct {
	CampaignID uuid.UUID       `json:"campaign_id"`
	DonorID    uuid.UUID       `json:"donor_id"`
	DonationID string          `json:"donation_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	FromWallet bool            `json:"from_wallet"`
}

// FeeRequest either carries an explicit split or a gross amount to split
// with the configured rates.
type FeeRequest struct {
	TransactionID string           `json:"transaction_id"`
	Amount        decimal.Decimal  `json:"amount"`
	VAT           decimal.Decimal  `json:"vat"`
	WHT           decimal.Decimal  `json:"wht"`
	Gross         *decimal.Decimal `json:"gross,omitempty"`
	Currency      string           `json:"currency"`
}

type ReleaseRequest struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	DisputeID     *uuid.UUID      `json:"dispute_id,omitempty"`
}

type RefundRequest struct {
	TransactionID string          `json:"transaction_id"`
	DonationID    string          `json:"donation_id"`
	DonorID       uuid.UUID       `json:"donor_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Stage         string          `json:"stage,omitempty"`
	DisputeID     *uuid.UUID      `json:"dispute_id,omitempty"`
}

type PayoutRequest struct {
	TransactionID string          `json:"transaction_id"`
	PayoutID      string          `json:"payout_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	DisputeID     *uuid.UUID      `json:"dispute_id,omitempty"`
}

type TopUpRequest struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}

type ReverseRequest struct {
	TransactionID string `json:"transaction_id"`
	Note          string `json:"note"`
}

// Campaigns

type CreateCampaignRequest struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	Currency     string          `json:"currency"`
}

type AssignProviderRequest struct {
	ProviderID uuid.UUID `json:"provider_id"`
}

type ModerateCampaignRequest struct {
	AdminStatus string `json:"admin_status"`
}

// Disputes

type RaiseDisputeRequest struct {
	EntityType string `json:"entity_type"` // DONATION / PAYOUT
	EntityID   string `json:"entity_id"`
	Reason     string `json:"reason"`
}

type ResolveDisputeRequest struct {
	Action string `json:"action"` // REFUND / RELEASE / NONE
	Notes  string `json:"notes"`
}

type RejectDisputeRequest struct {
	Notes string `json:"notes"`
}

// BalanceQuery is parsed from query parameters.
type BalanceQuery struct {
	Currency   string     `query:"currency"`
	CampaignID string     `query:"campaign_id"`
	ProviderID string     `query:"provider_id"`
	DonorID    string     `query:"donor_id"`
	DonationID string     `query:"donation_id"`
	PayoutID   string     `query:"payout_id"`
	AsOf       *time.Time `query:"-"`
}
