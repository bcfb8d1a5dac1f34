package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/directaid/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const campaignColumns = `id, beneficiary_id, provider_id, title, description, target_amount::text,
	currency, status, admin_status, created_at, updated_at`

type CampaignRepo struct {
	pool *pgxpool.Pool
}

func NewCampaignRepo(pool *pgxpool.Pool) *CampaignRepo {
	return &CampaignRepo{pool: pool}
}

func (r *CampaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO campaigns (beneficiary_id, provider_id, title, description, target_amount, currency, status, admin_status)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, c.BeneficiaryID, c.ProviderID, c.Title, c.Description, c.TargetAmount.String(),
		c.Currency, c.Status, c.AdminStatus,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return classify(err)
}

func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	c, err := scanCampaign(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: campaign %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, classify(err)
	}
	return &c, nil
}

func (r *CampaignRepo) List(ctx context.Context, f models.CampaignFilter) ([]models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.BeneficiaryID != nil {
		where = append(where, fmt.Sprintf("beneficiary_id = $%d", argIdx))
		args = append(args, *f.BeneficiaryID)
		argIdx++
	}
	if f.ProviderID != nil {
		where = append(where, fmt.Sprintf("provider_id = $%d", argIdx))
		args = append(args, *f.ProviderID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}
	if f.AdminStatus != nil {
		where = append(where, fmt.Sprintf("admin_status = $%d", argIdx))
		args = append(args, *f.AdminStatus)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, classify(err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, classify(rows.Err())
}

func (r *CampaignRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	return r.compareAndSet(ctx, "status", id, from, to)
}

func (r *CampaignRepo) UpdateAdminStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	return r.compareAndSet(ctx, "admin_status", id, from, to)
}

// compareAndSet updates column only while it still holds from.
func (r *CampaignRepo) compareAndSet(ctx context.Context, column string, id uuid.UUID, from, to string) error {
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE campaigns SET %[1]s = $1, updated_at = now()
		WHERE id = $2 AND %[1]s = $3
	`, column), to, id, from)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: campaign %s %s is no longer %s", models.ErrInvalidState, id, column, from)
}

func (r *CampaignRepo) SetProvider(ctx context.Context, id uuid.UUID, providerID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET provider_id = $1, updated_at = now()
		WHERE id = $2 AND (provider_id IS NULL OR provider_id = $1)
	`, providerID, id)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: campaign %s already has a provider", models.ErrInvalidState, id)
}

func scanCampaign(row pgx.Row) (models.Campaign, error) {
	var c models.Campaign
	var target string
	if err := row.Scan(&c.ID, &c.BeneficiaryID, &c.ProviderID, &c.Title, &c.Description, &target,
		&c.Currency, &c.Status, &c.AdminStatus, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return c, err
	}
	amount, err := decimal.NewFromString(target)
	if err != nil {
		return c, err
	}
	c.TargetAmount = amount
	return c, nil
}
