package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/directaid/backend/internal/metrics"
	"github.com/directaid/backend/internal/models"
	"github.com/directaid/backend/internal/rbac"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EscrowStateMachine runs the provider-then-beneficiary confirmation that
// gates escrow release. It never moves funds.
type EscrowStateMachine struct {
	confirmations ConfirmationStore
	campaigns     CampaignStore
	disputes      DisputeStore
	policy        models.ReleasePolicy
	auditor       *Auditor
	metrics       *metrics.Metrics
	log           *zap.Logger
}

func NewEscrowStateMachine(
	confirmations ConfirmationStore,
	campaigns CampaignStore,
	disputes DisputeStore,
	policy models.ReleasePolicy,
	auditor *Auditor,
	m *metrics.Metrics,
	log *zap.Logger,
) *EscrowStateMachine {
	if policy != models.ReleasePerTranche {
		policy = models.ReleaseSingle
	}
	return &EscrowStateMachine{
		confirmations: confirmations,
		campaigns:     campaigns,
		disputes:      disputes,
		policy:        policy,
		auditor:       auditor,
		metrics:       m,
		log:           log,
	}
}

func (e *EscrowStateMachine) Policy() models.ReleasePolicy { return e.policy }

// ConfirmProvider records that the assigned provider delivered.
func (e *EscrowStateMachine) ConfirmProvider(ctx context.Context, campaignID uuid.UUID, actor models.Actor) (*models.CampaignConfirmation, error) {
	c, err := e.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !rbac.HasPermission(actor.Role, rbac.PermConfirmDelivery) {
		return nil, fmt.Errorf("%w: role %s cannot confirm delivery", models.ErrNotAuthorized, actor.Role)
	}
	if !c.HasProvider() || *c.ProviderID != actor.ID {
		return nil, fmt.Errorf("%w: only the assigned provider can confirm delivery", models.ErrNotAuthorized)
	}
	if c.Status == models.CampaignStatusCancelled {
		return nil, fmt.Errorf("%w: campaign is cancelled", models.ErrInvalidState)
	}
	return e.transition(ctx, campaignID, models.ConfirmationNone, models.ConfirmationProviderConfirmed, actor, models.AuditProviderConfirmed)
}

// ConfirmBeneficiary records that the beneficiary received the delivery.
// The provider must have confirmed first.
func (e *EscrowStateMachine) ConfirmBeneficiary(ctx context.Context, campaignID uuid.UUID, actor models.Actor) (*models.CampaignConfirmation, error) {
	c, err := e.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !rbac.HasPermission(actor.Role, rbac.PermConfirmDelivery) {
		return nil, fmt.Errorf("%w: role %s cannot confirm delivery", models.ErrNotAuthorized, actor.Role)
	}
	if c.BeneficiaryID != actor.ID {
		return nil, fmt.Errorf("%w: only the campaign beneficiary can confirm receipt", models.ErrNotAuthorized)
	}
	if c.Status == models.CampaignStatusCancelled {
		return nil, fmt.Errorf("%w: campaign is cancelled", models.ErrInvalidState)
	}
	return e.transition(ctx, campaignID, models.ConfirmationProviderConfirmed, models.ConfirmationBothConfirmed, actor, models.AuditBeneficiaryConfirm)
}

func (e *EscrowStateMachine) Status(ctx context.Context, campaignID uuid.UUID) (*models.CampaignConfirmation, error) {
	if _, err := e.campaigns.GetByID(ctx, campaignID); err != nil {
		return nil, err
	}
	return e.confirmations.Get(ctx, campaignID)
}

// CompleteTranche closes the current release round. It is a no-op under the
// single release policy.
func (e *EscrowStateMachine) CompleteTranche(ctx context.Context, campaignID uuid.UUID) error {
	if e.policy != models.ReleasePerTranche {
		return nil
	}
	_, err := e.transition(ctx, campaignID, models.ConfirmationBothConfirmed, models.ConfirmationNone, models.SystemActor, models.AuditTrancheCompleted)
	return err
}

// RequireReleasable fails with ErrEscrowLocked, and a message naming what is
// missing, unless the campaign's escrow may be released now.
func (e *EscrowStateMachine) RequireReleasable(ctx context.Context, campaignID uuid.UUID) error {
	conf, err := e.confirmations.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	switch conf.Status {
	case models.ConfirmationNone:
		return fmt.Errorf("%w: cannot release funds: awaiting provider confirmation", models.ErrEscrowLocked)
	case models.ConfirmationProviderConfirmed:
		return fmt.Errorf("%w: cannot release funds: awaiting beneficiary confirmation", models.ErrEscrowLocked)
	}
	frozen, err := e.disputes.HasFrozenForCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	if frozen {
		return fmt.Errorf("%w: cannot release funds: funds are frozen pending dispute resolution", models.ErrEscrowLocked)
	}
	return nil
}

func (e *EscrowStateMachine) transition(
	ctx context.Context,
	campaignID uuid.UUID,
	from, to models.ConfirmationStatus,
	actor models.Actor,
	action string,
) (*models.CampaignConfirmation, error) {
	if !models.IsValidConfirmationTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidState, from, to)
	}

	conf, err := e.confirmations.Transition(ctx, campaignID, from, to)
	if err != nil {
		if errors.Is(err, models.ErrInvalidState) {
			e.log.Debug("confirmation transition lost",
				zap.String("campaign_id", campaignID.String()),
				zap.String("from", string(from)),
				zap.String("to", string(to)),
			)
		}
		return nil, err
	}
	e.metrics.Confirmations.WithLabelValues(string(to)).Inc()

	e.auditor.Record(models.AuditLog{
		ActorUserID: actor.Ref(),
		ActorType:   actor.Role,
		Action:      action,
		EntityType:  "campaign",
		EntityID:    campaignID.String(),
		Before:      from,
		After:       to,
		Meta:        map[string]any{"campaign_id": campaignID.String(), "round": conf.Round},
	})
	e.log.Info("confirmation changed",
		zap.String("campaign_id", campaignID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int("round", conf.Round),
	)
	return conf, nil
}
