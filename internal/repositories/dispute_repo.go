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

const disputeColumns = `id, entity_type, entity_id, campaign_id, raised_by, reason, status,
	resolution_action, resolution_notes, resolved_by, settlement_tx_id, created_at, updated_at, resolved_at`

const frozenStatuses = `('OPEN', 'UNDER_REVIEW')`

type DisputeRepo struct {
	pool *pgxpool.Pool
}

func NewDisputeRepo(pool *pgxpool.Pool) *DisputeRepo {
	return &DisputeRepo{pool: pool}
}

func (r *DisputeRepo) Create(ctx context.Context, d *models.Dispute) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO disputes (entity_type, entity_id, campaign_id, raised_by, reason, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, string(d.EntityType), d.EntityID, nullUUID(d.CampaignID), nullUUID(d.RaisedBy), d.Reason, string(d.Status),
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if _, ok := uniqueViolation(err); ok {
		return fmt.Errorf("%w: %s %s already has an active dispute", models.ErrInvalidState, d.EntityType, d.EntityID)
	}
	return classify(err)
}

func (r *DisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	d, err := scanDispute(r.pool.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: dispute %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, classify(err)
	}
	return &d, nil
}

func (r *DisputeRepo) List(ctx context.Context, f models.DisputeFilter) ([]models.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE TRUE`
	args := []any{}
	argIdx := 1

	if f.EntityType != nil {
		query += fmt.Sprintf(" AND entity_type = $%d", argIdx)
		args = append(args, string(*f.EntityType))
		argIdx++
	}
	if f.EntityID != nil {
		query += fmt.Sprintf(" AND entity_id = $%d", argIdx)
		args = append(args, *f.EntityID)
		argIdx++
	}
	if f.CampaignID != nil {
		query += fmt.Sprintf(" AND campaign_id = $%d", argIdx)
		args = append(args, *f.CampaignID)
		argIdx++
	}
	if f.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(*f.Status))
		argIdx++
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var disputes []models.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, classify(err)
		}
		disputes = append(disputes, d)
	}
	return disputes, classify(rows.Err())
}

func (r *DisputeRepo) UpdateStatus(ctx context.Context, d *models.Dispute, from []models.DisputeStatus) error {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}
	updated, err := scanDispute(r.pool.QueryRow(ctx, `
		UPDATE disputes SET status = $2, resolution_action = $3, resolution_notes = $4,
		       resolved_by = $5, resolved_at = $6, updated_at = now()
		WHERE id = $1 AND status = ANY($7)
		RETURNING `+disputeColumns,
		d.ID, string(d.Status), nullString(string(d.Resolution.Action)), d.Resolution.Notes,
		d.ResolvedBy, d.ResolvedAt, allowed))
	if errors.Is(err, pgx.ErrNoRows) {
		cur, getErr := r.GetByID(ctx, d.ID)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: dispute is %s", models.ErrInvalidState, cur.Status)
	}
	if err != nil {
		return classify(err)
	}
	*d = updated
	return nil
}

func (r *DisputeRepo) HasFrozen(ctx context.Context, entityType models.DisputeEntityType, entityID string) (bool, error) {
	var frozen bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM disputes
		WHERE entity_type = $1 AND entity_id = $2 AND status IN `+frozenStatuses+`)
	`, string(entityType), entityID).Scan(&frozen)
	return frozen, classify(err)
}

// HasFrozenForCampaign only looks at donation disputes.
func (r *DisputeRepo) HasFrozenForCampaign(ctx context.Context, campaignID uuid.UUID) (bool, error) {
	var frozen bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM disputes
		WHERE campaign_id = $1 AND entity_type = 'DONATION' AND status IN `+frozenStatuses+`)
	`, campaignID).Scan(&frozen)
	return frozen, classify(err)
}

func (r *DisputeRepo) ClaimSettlement(ctx context.Context, id uuid.UUID, txID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE disputes SET settlement_tx_id = $2, updated_at = now()
		WHERE id = $1 AND status = 'RESOLVED' AND (settlement_tx_id IS NULL OR settlement_tx_id = $2)
	`, id, txID)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	d, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if d.Status != models.DisputeResolved {
		return fmt.Errorf("%w: dispute %s is %s", models.ErrInvalidState, id, d.Status)
	}
	return fmt.Errorf("%w: dispute %s already settled by %s", models.ErrInvalidState, id, deref(d.SettlementTxID))
}

func (r *DisputeRepo) ReleaseSettlement(ctx context.Context, id uuid.UUID, txID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE disputes SET settlement_tx_id = NULL, updated_at = now()
		WHERE id = $1 AND settlement_tx_id = $2
	`, id, txID)
	return classify(err)
}

func scanDispute(row pgx.Row) (models.Dispute, error) {
	var d models.Dispute
	var entityType, status string
	var campaignID, raisedBy *uuid.UUID
	var action *string
	err := row.Scan(&d.ID, &entityType, &d.EntityID, &campaignID, &raisedBy, &d.Reason, &status,
		&action, &d.Resolution.Notes, &d.ResolvedBy, &d.SettlementTxID, &d.CreatedAt, &d.UpdatedAt, &d.ResolvedAt)
	if err != nil {
		return d, err
	}
	d.EntityType = models.DisputeEntityType(entityType)
	d.Status = models.DisputeStatus(status)
	d.Resolution.Action = models.ResolutionAction(deref(action))
	d.CampaignID = deref(campaignID)
	d.RaisedBy = deref(raisedBy)
	return d, nil
}
