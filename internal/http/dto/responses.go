package dto

import (
	"time"

	"github.com/directaid/backend/internal/models"
	"github.com/shopspring/decimal"
)

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type PostResponse struct {
	TransactionID string           `json:"transaction_id"`
	Event         models.EventType `json:"event"`
}

type FeeQuoteResponse struct {
	Gross    decimal.Decimal `json:"gross"`
	Fee      decimal.Decimal `json:"fee"`
	VAT      decimal.Decimal `json:"vat"`
	WHT      decimal.Decimal `json:"wht"`
	Currency string          `json:"currency"`
}

type BalanceResponse struct {
	Account  models.Account  `json:"account"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
	AsOf     *time.Time      `json:"as_of,omitempty"`
}

type CampaignBalancesResponse struct {
	CampaignID      string          `json:"campaign_id"`
	Currency        string          `json:"currency"`
	Escrow          decimal.Decimal `json:"escrow"`
	RefundLiability decimal.Decimal `json:"refund_liability"`
	ProviderBalance decimal.Decimal `json:"provider_balance"`
}

type EntriesResponse struct {
	Entries []models.LedgerEntry `json:"entries"`
	NextSeq int64                `json:"next_seq,omitempty"`
}
