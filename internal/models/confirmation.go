package models

import (
	"time"

	"github.com/google/uuid"
)

// ConfirmationStatus tracks the provider-then-beneficiary handshake that
// gates escrow release for a campaign.
type ConfirmationStatus string

const (
	ConfirmationNone              ConfirmationStatus = "NONE"
	ConfirmationProviderConfirmed ConfirmationStatus = "PROVIDER_CONFIRMED"
	ConfirmationBothConfirmed     ConfirmationStatus = "BOTH_CONFIRMED"
)

// Valid state transitions: from -> []to.
// BOTH_CONFIRMED -> NONE closes a release round under the per-tranche policy.
var ValidConfirmationTransitions = map[ConfirmationStatus][]ConfirmationStatus{
	ConfirmationNone:              {ConfirmationProviderConfirmed},
	ConfirmationProviderConfirmed: {ConfirmationBothConfirmed},
	ConfirmationBothConfirmed:     {ConfirmationNone},
}

func IsValidConfirmationTransition(from, to ConfirmationStatus) bool {
	allowed, ok := ValidConfirmationTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

type CampaignConfirmation struct {
	CampaignID             uuid.UUID          `json:"campaign_id"`
	Status                 ConfirmationStatus `json:"status"`
	Round                  int                `json:"round"`
	ProviderConfirmedAt    *time.Time         `json:"provider_confirmed_at,omitempty"`
	BeneficiaryConfirmedAt *time.Time         `json:"beneficiary_confirmed_at,omitempty"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// ReleasePolicy decides whether each release needs a fresh handshake.
type ReleasePolicy string

const (
	ReleaseSingle     ReleasePolicy = "single"
	ReleasePerTranche ReleasePolicy = "per_tranche"
)
