package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/directaid/backend/internal/models"
	"github.com/directaid/backend/internal/rbac"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CampaignService owns campaign records. Money raised is never stored here;
// it is always read from the ledger.
type CampaignService struct {
	campaigns       CampaignStore
	auditor         *Auditor
	defaultCurrency string
	log             *zap.Logger
}

func NewCampaignService(campaigns CampaignStore, auditor *Auditor, defaultCurrency string, log *zap.Logger) *CampaignService {
	return &CampaignService{
		campaigns:       campaigns,
		auditor:         auditor,
		defaultCurrency: defaultCurrency,
		log:             log,
	}
}

func (s *CampaignService) Create(ctx context.Context, actor models.Actor, c *models.Campaign) error {
	if !rbac.HasPermission(actor.Role, rbac.PermCreateCampaign) && !actor.IsAdmin() {
		return fmt.Errorf("%w: role %s cannot create campaigns", models.ErrNotAuthorized, actor.Role)
	}
	if !actor.IsAdmin() {
		c.BeneficiaryID = actor.ID
	}
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return fmt.Errorf("%w: title is required", models.ErrInvalidInput)
	}
	if c.BeneficiaryID == uuid.Nil {
		return fmt.Errorf("%w: beneficiary is required", models.ErrInvalidInput)
	}
	if !c.TargetAmount.IsPositive() {
		return fmt.Errorf("%w: target amount must be positive", models.ErrInvalidInput)
	}
	if err := models.CheckScale(c.TargetAmount); err != nil {
		return err
	}
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	if c.Currency == "" {
		c.Currency = s.defaultCurrency
	}
	c.Status = models.CampaignStatusActive
	c.AdminStatus = models.ModerationPending
	if c.ProviderID != nil && *c.ProviderID == uuid.Nil {
		c.ProviderID = nil
	}

	if err := s.campaigns.Create(ctx, c); err != nil {
		return err
	}

	s.auditor.Record(models.AuditLog{
		ActorUserID: actor.Ref(),
		ActorType:   actor.Role,
		Action:      models.AuditCampaignCreated,
		EntityType:  "campaign",
		EntityID:    c.ID.String(),
		After:       c,
		Meta:        map[string]any{"campaign_id": c.ID.String()},
	})
	return nil
}

func (s *CampaignService) Get(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	return s.campaigns.GetByID(ctx, id)
}

func (s *CampaignService) List(ctx context.Context, f models.CampaignFilter) ([]models.Campaign, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	return s.campaigns.List(ctx, f)
}

// AssignProvider links the campaign to the provider that will deliver.
// Once set, the provider cannot be swapped.
func (s *CampaignService) AssignProvider(ctx context.Context, actor models.Actor, id, providerID uuid.UUID) (*models.Campaign, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins can assign providers", models.ErrNotAuthorized)
	}
	if providerID == uuid.Nil {
		return nil, fmt.Errorf("%w: provider id is required", models.ErrInvalidInput)
	}
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != models.CampaignStatusActive {
		return nil, fmt.Errorf("%w: campaign is %s", models.ErrInvalidState, c.Status)
	}
	if c.HasProvider() {
		if *c.ProviderID == providerID {
			return c, nil
		}
		return nil, fmt.Errorf("%w: campaign already has provider %s", models.ErrInvalidState, *c.ProviderID)
	}

	if err := s.campaigns.SetProvider(ctx, id, providerID); err != nil {
		return nil, err
	}
	c.ProviderID = &providerID

	s.auditor.Record(models.AuditLog{
		ActorUserID: actor.Ref(),
		ActorType:   actor.Role,
		Action:      models.AuditProviderAssigned,
		EntityType:  "campaign",
		EntityID:    id.String(),
		Meta:        map[string]any{"campaign_id": id.String(), "provider_id": providerID.String()},
	})
	return c, nil
}

func (s *CampaignService) Moderate(ctx context.Context, actor models.Actor, id uuid.UUID, to string) (*models.Campaign, error) {
	if !rbac.HasPermission(actor.Role, rbac.PermModerateCampaign) {
		return nil, fmt.Errorf("%w: only admins can moderate campaigns", models.ErrNotAuthorized)
	}
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := c.AdminStatus
	if !models.IsValidModerationTransition(from, to) {
		return nil, fmt.Errorf("%w: moderation cannot move from %s to %s", models.ErrInvalidState, from, to)
	}
	if err := s.campaigns.UpdateAdminStatus(ctx, id, from, to); err != nil {
		return nil, err
	}
	c.AdminStatus = to

	s.auditor.Record(models.AuditLog{
		ActorUserID: actor.Ref(),
		ActorType:   actor.Role,
		Action:      models.AuditCampaignModerated,
		EntityType:  "campaign",
		EntityID:    id.String(),
		Before:      from,
		After:       to,
		Meta:        map[string]any{"campaign_id": id.String()},
	})
	return c, nil
}

// Cancel stops a campaign. Cancelled campaigns accept no donations and their
// escrow becomes refundable.
func (s *CampaignService) Cancel(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Campaign, error) {
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rbac.HasPermission(actor.Role, rbac.PermCancelCampaign) {
		return nil, fmt.Errorf("%w: role %s cannot cancel campaigns", models.ErrNotAuthorized, actor.Role)
	}
	if !actor.IsAdmin() && c.BeneficiaryID != actor.ID {
		return nil, fmt.Errorf("%w: only the beneficiary or an admin can cancel", models.ErrNotAuthorized)
	}
	return s.setStatus(ctx, actor, c, models.CampaignStatusCancelled)
}

func (s *CampaignService) Complete(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Campaign, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins can complete campaigns", models.ErrNotAuthorized)
	}
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.setStatus(ctx, actor, c, models.CampaignStatusCompleted)
}

func (s *CampaignService) setStatus(ctx context.Context, actor models.Actor, c *models.Campaign, to string) (*models.Campaign, error) {
	from := c.Status
	if !models.IsValidCampaignTransition(from, to) {
		return nil, fmt.Errorf("%w: campaign cannot move from %s to %s", models.ErrInvalidState, from, to)
	}
	if err := s.campaigns.UpdateStatus(ctx, c.ID, from, to); err != nil {
		return nil, err
	}
	c.Status = to

	s.auditor.Record(models.AuditLog{
		ActorUserID: actor.Ref(),
		ActorType:   actor.Role,
		Action:      models.AuditCampaignStatus,
		EntityType:  "campaign",
		EntityID:    c.ID.String(),
		Before:      from,
		After:       to,
		Meta:        map[string]any{"campaign_id": c.ID.String()},
	})
	s.log.Info("campaign status changed",
		zap.String("campaign_id", c.ID.String()),
		zap.String("from", from),
		zap.String("to", to),
	)
	return c, nil
}
