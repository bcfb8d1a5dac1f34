package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names the business event a transaction records.
type EventType string

const (
	EventDonation      EventType = "DONATION"
	EventFeeDeduction  EventType = "FEE_DEDUCTION"
	EventEscrowRelease EventType = "ESCROW_RELEASE"
	EventRefund        EventType = "REFUND"
	EventPayout        EventType = "PAYOUT"
	EventWalletTopUp   EventType = "WALLET_TOPUP"
	EventReversal      EventType = "REVERSAL"
)

// BusinessEvent is a request to post one balanced transaction.
type BusinessEvent interface {
	TransactionID() string
	Type() EventType
}

// Donation moves captured funds into a campaign's escrow.
type Donation struct {
	TxID       string          `json:"transaction_id"`
	CampaignID uuid.UUID       `json:"campaign_id"`
	DonorID    uuid.UUID       `json:"donor_id"`
	DonationID string          `json:"donation_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	FromWallet bool            `json:"from_wallet"`
}

func (d Donation) TransactionID() string { return d.TxID }
func (Donation) Type() EventType         { return EventDonation }

// FeeDeduction takes the platform fee out of escrow. VAT and WHT are the tax
// portions of Amount; the remainder is platform revenue.
type FeeDeduction struct {
	TxID       string          `json:"transaction_id"`
	CampaignID uuid.UUID       `json:"campaign_id"`
	Amount     decimal.Decimal `json:"amount"`
	VAT        decimal.Decimal `json:"vat"`
	WHT        decimal.Decimal `json:"wht"`
	Currency   string          `json:"currency"`
}

func (f FeeDeduction) TransactionID() string { return f.TxID }
func (FeeDeduction) Type() EventType         { return EventFeeDeduction }

// EscrowRelease moves escrowed funds to the campaign provider's balance.
type EscrowRelease struct {
	TxID       string          `json:"transaction_id"`
	CampaignID uuid.UUID       `json:"campaign_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	DisputeID  uuid.UUID       `json:"dispute_id"`
}

func (r EscrowRelease) TransactionID() string { return r.TxID }
func (EscrowRelease) Type() EventType         { return EventEscrowRelease }

// RefundStage selects which leg of a refund is posted.
type RefundStage string

const (
	// RefundDirect routes escrow through refund liability to the gateway in one transaction.
	RefundDirect RefundStage = "DIRECT"
	// RefundAccrue recognises the liability without paying it out.
	RefundAccrue RefundStage = "ACCRUE"
	// RefundSettle pays out a previously accrued liability.
	RefundSettle RefundStage = "SETTLE"
)

func (s RefundStage) Valid() bool {
	return s == RefundDirect || s == RefundAccrue || s == RefundSettle
}

// Refund returns donated funds to the donor through the payment gateway.
type Refund struct {
	TxID       string          `json:"transaction_id"`
	CampaignID uuid.UUID       `json:"campaign_id"`
	DonationID string          `json:"donation_id"`
	DonorID    uuid.UUID       `json:"donor_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Stage      RefundStage     `json:"stage"`
	DisputeID  uuid.UUID       `json:"dispute_id"`
}

func (r Refund) TransactionID() string { return r.TxID }
func (Refund) Type() EventType         { return EventRefund }

// Payout sends a provider's balance out through the payment gateway.
type Payout struct {
	TxID       string          `json:"transaction_id"`
	ProviderID uuid.UUID       `json:"provider_id"`
	PayoutID   string          `json:"payout_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	DisputeID  uuid.UUID       `json:"dispute_id"`
}

func (p Payout) TransactionID() string { return p.TxID }
func (Payout) Type() EventType         { return EventPayout }

// WalletTopUp credits a donor's platform wallet from the gateway.
type WalletTopUp struct {
	TxID     string          `json:"transaction_id"`
	DonorID  uuid.UUID       `json:"donor_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (w WalletTopUp) TransactionID() string { return w.TxID }
func (WalletTopUp) Type() EventType         { return EventWalletTopUp }
