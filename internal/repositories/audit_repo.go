package repositories

import (
	"context"
	"encoding/json"

	"github.com/directaid/backend/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Log(ctx context.Context, entry models.AuditLog) error {
	before, err := jsonState(entry.Before)
	if err != nil {
		return err
	}
	after, err := jsonState(entry.After)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_log (actor_user_id, actor_type, action, entity_type, entity_id, before_state, after_state, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ActorUserID, entry.ActorType, entry.Action, entry.EntityType, entry.EntityID, before, after, entry.Meta)
	return classify(err)
}

func (r *AuditRepo) GetByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, actor_user_id, actor_type, action, entity_type, entity_id, before_state, after_state, meta, created_at
		FROM audit_log WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC LIMIT $3 OFFSET $4
	`, entityType, entityID, limit, offset)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var l models.AuditLog
		var before, after []byte
		if err := rows.Scan(&l.ID, &l.ActorUserID, &l.ActorType, &l.Action, &l.EntityType, &l.EntityID,
			&before, &after, &l.Meta, &l.CreatedAt); err != nil {
			return nil, classify(err)
		}
		if len(before) > 0 {
			l.Before = json.RawMessage(before)
		}
		if len(after) > 0 {
			l.After = json.RawMessage(after)
		}
		logs = append(logs, l)
	}
	return logs, classify(rows.Err())
}

func jsonState(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
