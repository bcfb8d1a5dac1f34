package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/directaid/backend/internal/models"
	"github.com/google/uuid"
)

type CampaignStore struct {
	mu        sync.RWMutex
	campaigns map[uuid.UUID]models.Campaign
}

func NewCampaignStore() *CampaignStore {
	return &CampaignStore{campaigns: make(map[uuid.UUID]models.Campaign)}
}

func (s *CampaignStore) Create(ctx context.Context, c *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if _, exists := s.campaigns[c.ID]; exists {
		return fmt.Errorf("%w: campaign %s already exists", models.ErrInvalidState, c.ID)
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	s.campaigns[c.ID] = *c
	return nil
}

func (s *CampaignStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("%w: campaign %s", models.ErrNotFound, id)
	}
	return &c, nil
}

func (s *CampaignStore) List(ctx context.Context, f models.CampaignFilter) ([]models.Campaign, error) {
	s.mu.RLock()
	var out []models.Campaign
	for _, c := range s.campaigns {
		if f.BeneficiaryID != nil && c.BeneficiaryID != *f.BeneficiaryID {
			continue
		}
		if f.ProviderID != nil && (c.ProviderID == nil || *c.ProviderID != *f.ProviderID) {
			continue
		}
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		if f.AdminStatus != nil && c.AdminStatus != *f.AdminStatus {
			continue
		}
		out = append(out, c)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), nil
}

func (s *CampaignStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	return s.update(id, func(c *models.Campaign) error {
		if c.Status != from {
			return fmt.Errorf("%w: campaign is %s, not %s", models.ErrInvalidState, c.Status, from)
		}
		c.Status = to
		return nil
	})
}

func (s *CampaignStore) UpdateAdminStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	return s.update(id, func(c *models.Campaign) error {
		if c.AdminStatus != from {
			return fmt.Errorf("%w: campaign moderation is %s, not %s", models.ErrInvalidState, c.AdminStatus, from)
		}
		c.AdminStatus = to
		return nil
	})
}

func (s *CampaignStore) SetProvider(ctx context.Context, id uuid.UUID, providerID uuid.UUID) error {
	return s.update(id, func(c *models.Campaign) error {
		c.ProviderID = &providerID
		return nil
	})
}

func (s *CampaignStore) update(id uuid.UUID, fn func(*models.Campaign) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return fmt.Errorf("%w: campaign %s", models.ErrNotFound, id)
	}
	if err := fn(&c); err != nil {
		return err
	}
	c.UpdatedAt = time.Now().UTC()
	s.campaigns[id] = c
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
