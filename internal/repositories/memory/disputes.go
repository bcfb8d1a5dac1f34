package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/directaid/backend/internal/models"
	"github.com/google/uuid"
)

type DisputeStore struct {
	mu       sync.RWMutex
	disputes map[uuid.UUID]models.Dispute
}

func NewDisputeStore() *DisputeStore {
	return &DisputeStore{disputes: make(map[uuid.UUID]models.Dispute)}
}

func (s *DisputeStore) Create(ctx context.Context, d *models.Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.disputes {
		if other.EntityType == d.EntityType && other.EntityID == d.EntityID && other.Frozen() {
			return fmt.Errorf("%w: %s %s already has active dispute %s",
				models.ErrInvalidState, d.EntityType, d.EntityID, other.ID)
		}
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	s.disputes[d.ID] = *d
	return nil
}

func (s *DisputeStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.disputes[id]
	if !ok {
		return nil, fmt.Errorf("%w: dispute %s", models.ErrNotFound, id)
	}
	return &d, nil
}

func (s *DisputeStore) List(ctx context.Context, f models.DisputeFilter) ([]models.Dispute, error) {
	s.mu.RLock()
	var out []models.Dispute
	for _, d := range s.disputes {
		if f.EntityType != nil && d.EntityType != *f.EntityType {
			continue
		}
		if f.EntityID != nil && d.EntityID != *f.EntityID {
			continue
		}
		if f.CampaignID != nil && d.CampaignID != *f.CampaignID {
			continue
		}
		if f.Status != nil && d.Status != *f.Status {
			continue
		}
		out = append(out, d)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), nil
}

func (s *DisputeStore) UpdateStatus(ctx context.Context, d *models.Dispute, from []models.DisputeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.disputes[d.ID]
	if !ok {
		return fmt.Errorf("%w: dispute %s", models.ErrNotFound, d.ID)
	}
	if !slices.Contains(from, cur.Status) {
		return fmt.Errorf("%w: dispute is %s", models.ErrInvalidState, cur.Status)
	}
	cur.Status = d.Status
	cur.Resolution = d.Resolution
	cur.ResolvedBy = d.ResolvedBy
	cur.ResolvedAt = d.ResolvedAt
	cur.UpdatedAt = time.Now().UTC()
	s.disputes[d.ID] = cur
	*d = cur
	return nil
}

func (s *DisputeStore) HasFrozen(ctx context.Context, entityType models.DisputeEntityType, entityID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.disputes {
		if d.EntityType == entityType && d.EntityID == entityID && d.Frozen() {
			return true, nil
		}
	}
	return false, nil
}

// HasFrozenForCampaign only looks at donation disputes; payout disputes do
// not lock a campaign's escrow.
func (s *DisputeStore) HasFrozenForCampaign(ctx context.Context, campaignID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.disputes {
		if d.EntityType == models.DisputeEntityDonation && d.CampaignID == campaignID && d.Frozen() {
			return true, nil
		}
	}
	return false, nil
}

func (s *DisputeStore) ClaimSettlement(ctx context.Context, id uuid.UUID, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.disputes[id]
	if !ok {
		return fmt.Errorf("%w: dispute %s", models.ErrNotFound, id)
	}
	if d.Status != models.DisputeResolved {
		return fmt.Errorf("%w: dispute %s is %s", models.ErrInvalidState, id, d.Status)
	}
	if d.SettlementTxID != nil {
		if *d.SettlementTxID == txID {
			return nil
		}
		return fmt.Errorf("%w: dispute %s already settled by %s", models.ErrInvalidState, id, *d.SettlementTxID)
	}
	d.SettlementTxID = &txID
	d.UpdatedAt = time.Now().UTC()
	s.disputes[id] = d
	return nil
}

func (s *DisputeStore) ReleaseSettlement(ctx context.Context, id uuid.UUID, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.disputes[id]
	if !ok {
		return fmt.Errorf("%w: dispute %s", models.ErrNotFound, id)
	}
	if d.SettlementTxID != nil && *d.SettlementTxID == txID {
		d.SettlementTxID = nil
		d.UpdatedAt = time.Now().UTC()
		s.disputes[id] = d
	}
	return nil
}
