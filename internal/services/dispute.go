package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/directaid/backend/internal/metrics"
	"github.com/directaid/backend/internal/models"
	"github.com/directaid/backend/internal/rbac"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DisputeManager freezes donations and payouts while an admin adjudicates.
type DisputeManager struct {
	disputes DisputeStore
	ledger   LedgerStore
	auditor  *Auditor
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewDisputeManager(disputes DisputeStore, ledger LedgerStore, auditor *Auditor, m *metrics.Metrics, log *zap.Logger) *DisputeManager {
	return &DisputeManager{
		disputes: disputes,
		ledger:   ledger,
		auditor:  auditor,
		metrics:  m,
		log:      log,
	}
}

// Raise opens a dispute. Donation disputes are tied to the campaign the
// donation was posted to; payout disputes may precede the payout itself.
func (m *DisputeManager) Raise(ctx context.Context, entityType models.DisputeEntityType, entityID string, raisedBy models.Actor, reason string) (*models.Dispute, error) {
	entityID = strings.TrimSpace(entityID)
	reason = strings.TrimSpace(reason)
	if !rbac.HasPermission(raisedBy.Role, rbac.PermRaiseDispute) {
		return nil, fmt.Errorf("%w: role %s cannot raise disputes", models.ErrNotAuthorized, raisedBy.Role)
	}
	if !entityType.Valid() {
		return nil, fmt.Errorf("%w: unknown entity type %q", models.ErrInvalidInput, entityType)
	}
	if entityID == "" {
		return nil, fmt.Errorf("%w: entity id is required", models.ErrInvalidInput)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", models.ErrInvalidInput)
	}

	d := &models.Dispute{
		EntityType: entityType,
		EntityID:   entityID,
		RaisedBy:   raisedBy.ID,
		Reason:     reason,
		Status:     models.DisputeOpen,
	}
	if entityType == models.DisputeEntityDonation {
		campaignID, err := m.campaignOfDonation(ctx, entityID)
		if err != nil {
			return nil, err
		}
		d.CampaignID = campaignID
	}

	if err := m.disputes.Create(ctx, d); err != nil {
		return nil, err
	}
	m.metrics.Disputes.WithLabelValues(string(d.Status)).Inc()
	m.record(d, raisedBy, models.AuditDisputeRaised, "", map[string]any{"reason": reason})
	m.log.Info("dispute raised",
		zap.String("dispute_id", d.ID.String()),
		zap.String("entity_type", string(entityType)),
		zap.String("entity_id", entityID),
	)
	return d, nil
}

func (m *DisputeManager) campaignOfDonation(ctx context.Context, donationID string) (uuid.UUID, error) {
	for e, err := range m.ledger.Scan(ctx, models.EntryFilter{DonationID: donationID}) {
		if err != nil {
			return uuid.Nil, err
		}
		if e.Metadata.CampaignID != uuid.Nil {
			return e.Metadata.CampaignID, nil
		}
	}
	return uuid.Nil, fmt.Errorf("%w: donation %s has not been posted", models.ErrNotFound, donationID)
}

// StartReview moves an open dispute under admin review. Funds stay frozen.
func (m *DisputeManager) StartReview(ctx context.Context, id uuid.UUID, admin models.Actor) (*models.Dispute, error) {
	if !rbac.HasPermission(admin.Role, rbac.PermResolveDispute) {
		return nil, fmt.Errorf("%w: only admins can review disputes", models.ErrNotAuthorized)
	}
	d, err := m.disputes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.transition(ctx, d, models.DisputeUnderReview, models.Resolution{}, admin, models.AuditDisputeReview)
}

// Resolve closes the dispute with an action. A REFUND or RELEASE resolution
// authorizes exactly one follow-up posting that carries the dispute id.
func (m *DisputeManager) Resolve(ctx context.Context, id uuid.UUID, admin models.Actor, action models.ResolutionAction, notes string) (*models.Dispute, error) {
	if !rbac.HasPermission(admin.Role, rbac.PermResolveDispute) {
		return nil, fmt.Errorf("%w: only admins can resolve disputes", models.ErrNotAuthorized)
	}
	if !action.Valid() {
		return nil, fmt.Errorf("%w: unknown resolution action %q", models.ErrInvalidInput, action)
	}
	d, err := m.disputes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.EntityType == models.DisputeEntityPayout && action == models.ResolutionRefund {
		return nil, fmt.Errorf("%w: payout disputes resolve with RELEASE or NONE", models.ErrInvalidInput)
	}
	return m.transition(ctx, d, models.DisputeResolved, models.Resolution{Action: action, Notes: notes}, admin, models.AuditDisputeResolved)
}

// Reject closes the dispute without action and unfreezes the entity.
func (m *DisputeManager) Reject(ctx context.Context, id uuid.UUID, admin models.Actor, notes string) (*models.Dispute, error) {
	if !rbac.HasPermission(admin.Role, rbac.PermResolveDispute) {
		return nil, fmt.Errorf("%w: only admins can reject disputes", models.ErrNotAuthorized)
	}
	d, err := m.disputes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.transition(ctx, d, models.DisputeRejected, models.Resolution{Action: models.ResolutionNone, Notes: notes}, admin, models.AuditDisputeRejected)
}

func (m *DisputeManager) transition(
	ctx context.Context,
	d *models.Dispute,
	to models.DisputeStatus,
	resolution models.Resolution,
	actor models.Actor,
	action string,
) (*models.Dispute, error) {
	from := d.Status
	if !models.IsValidDisputeTransition(from, to) {
		return nil, fmt.Errorf("%w: dispute %s cannot move from %s to %s", models.ErrInvalidState, d.ID, from, to)
	}

	next := *d
	next.Status = to
	if to == models.DisputeResolved || to == models.DisputeRejected {
		now := time.Now().UTC()
		next.Resolution = resolution
		next.ResolvedBy = actor.Ref()
		next.ResolvedAt = &now
	}
	if err := m.disputes.UpdateStatus(ctx, &next, []models.DisputeStatus{from}); err != nil {
		return nil, err
	}

	m.metrics.Disputes.WithLabelValues(string(to)).Inc()
	meta := map[string]any{}
	if resolution.Action != "" {
		meta["resolution"] = string(resolution.Action)
	}
	m.record(&next, actor, action, from, meta)
	m.log.Info("dispute changed",
		zap.String("dispute_id", next.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return &next, nil
}

func (m *DisputeManager) record(d *models.Dispute, actor models.Actor, action string, before models.DisputeStatus, meta map[string]any) {
	meta["entity_type"] = string(d.EntityType)
	meta["entity_id"] = d.EntityID
	if d.CampaignID != uuid.Nil {
		meta["campaign_id"] = d.CampaignID.String()
	}
	rec := models.AuditLog{
		ActorUserID: actor.Ref(),
		ActorType:   actor.Role,
		Action:      action,
		EntityType:  "dispute",
		EntityID:    d.ID.String(),
		After:       d.Status,
		Meta:        meta,
	}
	if before != "" {
		rec.Before = before
	}
	m.auditor.Record(rec)
}

func (m *DisputeManager) Get(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return m.disputes.GetByID(ctx, id)
}

func (m *DisputeManager) List(ctx context.Context, f models.DisputeFilter) ([]models.Dispute, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	return m.disputes.List(ctx, f)
}

// IsFrozen reports whether the entity has an OPEN or UNDER_REVIEW dispute.
func (m *DisputeManager) IsFrozen(ctx context.Context, entityType models.DisputeEntityType, entityID string) (bool, error) {
	return m.disputes.HasFrozen(ctx, entityType, entityID)
}

func (m *DisputeManager) HasFrozenForCampaign(ctx context.Context, campaignID uuid.UUID) (bool, error) {
	return m.disputes.HasFrozenForCampaign(ctx, campaignID)
}

// Settlement returns the dispute behind a dispute-driven posting after
// checking that its resolution authorizes the given action.
func (m *DisputeManager) Settlement(ctx context.Context, id uuid.UUID, action models.ResolutionAction) (*models.Dispute, error) {
	d, err := m.disputes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status != models.DisputeResolved {
		return nil, fmt.Errorf("%w: dispute %s is %s, not RESOLVED", models.ErrInvalidState, id, d.Status)
	}
	if d.Resolution.Action != action {
		return nil, fmt.Errorf("%w: dispute %s was resolved with %s, not %s", models.ErrInvalidState, id, d.Resolution.Action, action)
	}
	return d, nil
}

func (m *DisputeManager) ClaimSettlement(ctx context.Context, id uuid.UUID, txID string) error {
	return m.disputes.ClaimSettlement(ctx, id, txID)
}

func (m *DisputeManager) ReleaseSettlement(ctx context.Context, id uuid.UUID, txID string) error {
	return m.disputes.ReleaseSettlement(ctx, id, txID)
}
