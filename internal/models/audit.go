package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog is one activity record: who did what to which entity.
type AuditLog struct {
	ID          uuid.UUID      `json:"id"`
	ActorUserID *uuid.UUID     `json:"actor_user_id,omitempty"`
	ActorType   string         `json:"actor_type"` // ADMIN/DONOR/BENEFICIARY/PROVIDER/SYSTEM
	Action      string         `json:"action"`
	EntityType  string         `json:"entity_type"`
	EntityID    string         `json:"entity_id"`
	Before      any            `json:"before,omitempty"`
	After       any            `json:"after,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Audit actions
const (
	AuditTransactionPosted   = "ledger_transaction_posted"
	AuditTransactionReversed = "ledger_transaction_reversed"
	AuditProviderConfirmed   = "campaign_provider_confirmed"
	AuditBeneficiaryConfirm  = "campaign_beneficiary_confirmed"
	AuditTrancheCompleted    = "campaign_release_round_closed"
	AuditDisputeRaised       = "dispute_raised"
	AuditDisputeReview       = "dispute_review_started"
	AuditDisputeResolved     = "dispute_resolved"
	AuditDisputeRejected     = "dispute_rejected"
	AuditCampaignCreated     = "campaign_created"
	AuditCampaignModerated   = "campaign_moderated"
	AuditCampaignStatus      = "campaign_status_changed"
	AuditProviderAssigned    = "campaign_provider_assigned"
)
