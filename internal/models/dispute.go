package models

import (
	"time"

	"github.com/google/uuid"
)

type DisputeEntityType string

const (
	DisputeEntityDonation DisputeEntityType = "DONATION"
	DisputeEntityPayout   DisputeEntityType = "PAYOUT"
)

func (t DisputeEntityType) Valid() bool {
	return t == DisputeEntityDonation || t == DisputeEntityPayout
}

type DisputeStatus string

const (
	DisputeOpen        DisputeStatus = "OPEN"
	DisputeUnderReview DisputeStatus = "UNDER_REVIEW"
	DisputeResolved    DisputeStatus = "RESOLVED"
	DisputeRejected    DisputeStatus = "REJECTED"
)

// Valid state transitions: from -> []to
var ValidDisputeTransitions = map[DisputeStatus][]DisputeStatus{
	DisputeOpen:        {DisputeUnderReview, DisputeResolved, DisputeRejected},
	DisputeUnderReview: {DisputeResolved, DisputeRejected},
	DisputeResolved:    {},
	DisputeRejected:    {},
}

func IsValidDisputeTransition(from, to DisputeStatus) bool {
	allowed, ok := ValidDisputeTransitions[from]
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

// Frozen reports whether a dispute in this status locks the entity's funds.
func (s DisputeStatus) Frozen() bool {
	return s == DisputeOpen || s == DisputeUnderReview
}

type ResolutionAction string

const (
	ResolutionRefund  ResolutionAction = "REFUND"
	ResolutionRelease ResolutionAction = "RELEASE"
	ResolutionNone    ResolutionAction = "NONE"
)

func (a ResolutionAction) Valid() bool {
	return a == ResolutionRefund || a == ResolutionRelease || a == ResolutionNone
}

type Resolution struct {
	Action ResolutionAction `json:"action,omitempty"`
	Notes  string           `json:"notes,omitempty"`
}

type Dispute struct {
	ID             uuid.UUID         `json:"id"`
	EntityType     DisputeEntityType `json:"entity_type"`
	EntityID       string            `json:"entity_id"`
	CampaignID     uuid.UUID         `json:"campaign_id"`
	RaisedBy       uuid.UUID         `json:"raised_by"`
	Reason         string            `json:"reason"`
	Status         DisputeStatus     `json:"status"`
	Resolution     Resolution        `json:"resolution"`
	ResolvedBy     *uuid.UUID        `json:"resolved_by,omitempty"`
	SettlementTxID *string           `json:"settlement_tx_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	ResolvedAt     *time.Time        `json:"resolved_at,omitempty"`
}

func (d *Dispute) Frozen() bool { return d.Status.Frozen() }

type DisputeFilter struct {
	EntityType *DisputeEntityType
	EntityID   *string
	CampaignID *uuid.UUID
	Status     *DisputeStatus
	Limit      int
	Offset     int
}
