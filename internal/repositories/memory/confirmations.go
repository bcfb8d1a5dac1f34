package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/directaid/backend/internal/models"
	"github.com/google/uuid"
)

type ConfirmationStore struct {
	mu    sync.Mutex
	state map[uuid.UUID]models.CampaignConfirmation
}

func NewConfirmationStore() *ConfirmationStore {
	return &ConfirmationStore{state: make(map[uuid.UUID]models.CampaignConfirmation)}
}

// Get returns NONE for campaigns that never confirmed anything.
func (s *ConfirmationStore) Get(ctx context.Context, campaignID uuid.UUID) (*models.CampaignConfirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.load(campaignID)
	return &c, nil
}

func (s *ConfirmationStore) Transition(ctx context.Context, campaignID uuid.UUID, from, to models.ConfirmationStatus) (*models.CampaignConfirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.load(campaignID)
	if c.Status != from {
		return nil, fmt.Errorf("%w: confirmation is %s, not %s", models.ErrInvalidState, c.Status, from)
	}

	now := time.Now().UTC()
	switch to {
	case models.ConfirmationProviderConfirmed:
		c.ProviderConfirmedAt = &now
	case models.ConfirmationBothConfirmed:
		c.BeneficiaryConfirmedAt = &now
	case models.ConfirmationNone:
		c.Round++
		c.ProviderConfirmedAt = nil
		c.BeneficiaryConfirmedAt = nil
	}
	c.Status = to
	c.UpdatedAt = now
	s.state[campaignID] = c
	return &c, nil
}

func (s *ConfirmationStore) load(campaignID uuid.UUID) models.CampaignConfirmation {
	if c, ok := s.state[campaignID]; ok {
		return c
	}
	return models.CampaignConfirmation{
		CampaignID: campaignID,
		Status:     models.ConfirmationNone,
		Round:      1,
	}
}
