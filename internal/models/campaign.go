package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Campaign lifecycle
const (
	CampaignStatusActive    = "ACTIVE"
	CampaignStatusCompleted = "COMPLETED"
	CampaignStatusCancelled = "CANCELLED"
)

// Admin moderation
const (
	ModerationPending  = "pending"
	ModerationApproved = "approved"
	ModerationRejected = "rejected"
	ModerationFlagged  = "flagged"
)

var ValidModerationTransitions = map[string][]string{
	ModerationPending:  {ModerationApproved, ModerationRejected, ModerationFlagged},
	ModerationApproved: {ModerationFlagged},
	ModerationFlagged:  {ModerationApproved, ModerationRejected},
	ModerationRejected: {},
}

var ValidCampaignTransitions = map[string][]string{
	CampaignStatusActive:    {CampaignStatusCompleted, CampaignStatusCancelled},
	CampaignStatusCompleted: {},
	CampaignStatusCancelled: {},
}

func IsValidModerationTransition(from, to string) bool {
	return contains(ValidModerationTransitions[from], to)
}

func IsValidCampaignTransition(from, to string) bool {
	return contains(ValidCampaignTransitions[from], to)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Campaign never stores money totals; those come from the ledger.
type Campaign struct {
	ID            uuid.UUID       `json:"id"`
	BeneficiaryID uuid.UUID       `json:"beneficiary_id"`
	ProviderID    *uuid.UUID      `json:"provider_id,omitempty"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	AdminStatus   string          `json:"admin_status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// AcceptsDonations reports whether new donations may be posted.
func (c *Campaign) AcceptsDonations() bool {
	return c.Status == CampaignStatusActive && c.AdminStatus == ModerationApproved
}

func (c *Campaign) HasProvider() bool {
	return c.ProviderID != nil && *c.ProviderID != uuid.Nil
}

type CampaignFilter struct {
	BeneficiaryID *uuid.UUID
	ProviderID    *uuid.UUID
	Status        *string
	AdminStatus   *string
	Limit         int
	Offset        int
}
