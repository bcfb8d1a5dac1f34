package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/directaid/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConfirmationRepo struct {
	pool *pgxpool.Pool
}

func NewConfirmationRepo(pool *pgxpool.Pool) *ConfirmationRepo {
	return &ConfirmationRepo{pool: pool}
}

// Get returns NONE for campaigns without a confirmation row.
func (r *ConfirmationRepo) Get(ctx context.Context, campaignID uuid.UUID) (*models.CampaignConfirmation, error) {
	var c models.CampaignConfirmation
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT campaign_id, status, round, provider_confirmed_at, beneficiary_confirmed_at, updated_at
		FROM campaign_confirmations WHERE campaign_id = $1
	`, campaignID).Scan(&c.CampaignID, &status, &c.Round, &c.ProviderConfirmedAt, &c.BeneficiaryConfirmedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.CampaignConfirmation{CampaignID: campaignID, Status: models.ConfirmationNone, Round: 1}, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	c.Status = models.ConfirmationStatus(status)
	return &c, nil
}

func (r *ConfirmationRepo) Transition(ctx context.Context, campaignID uuid.UUID, from, to models.ConfirmationStatus) (*models.CampaignConfirmation, error) {
	if from == models.ConfirmationNone {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO campaign_confirmations (campaign_id, status) VALUES ($1, 'NONE')
			ON CONFLICT (campaign_id) DO NOTHING
		`, campaignID)
		if err != nil {
			return nil, classify(err)
		}
	}

	var c models.CampaignConfirmation
	var status string
	err := r.pool.QueryRow(ctx, `
		UPDATE campaign_confirmations SET
			status = $2::text,
			round = CASE WHEN $2::text = 'NONE' THEN round + 1 ELSE round END,
			provider_confirmed_at = CASE
				WHEN $2::text = 'PROVIDER_CONFIRMED' THEN now()
				WHEN $2::text = 'NONE' THEN NULL
				ELSE provider_confirmed_at END,
			beneficiary_confirmed_at = CASE
				WHEN $2::text = 'BOTH_CONFIRMED' THEN now()
				WHEN $2::text = 'NONE' THEN NULL
				ELSE beneficiary_confirmed_at END,
			updated_at = now()
		WHERE campaign_id = $1 AND status = $3
		RETURNING campaign_id, status, round, provider_confirmed_at, beneficiary_confirmed_at, updated_at
	`, campaignID, string(to), string(from)).Scan(&c.CampaignID, &status, &c.Round,
		&c.ProviderConfirmedAt, &c.BeneficiaryConfirmedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		cur, getErr := r.Get(ctx, campaignID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: confirmation is %s, not %s", models.ErrInvalidState, cur.Status, from)
	}
	if err != nil {
		return nil, classify(err)
	}
	c.Status = models.ConfirmationStatus(status)
	return &c, nil
}
