package services

import (
	"context"
	"strings"
	"time"

	"github.com/directaid/backend/internal/events"
	"github.com/directaid/backend/internal/metrics"
	"github.com/directaid/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Auditor records activity without ever blocking or failing the caller.
// Records are queued and written to the sink by Run; a full queue drops the
// record with a warning.
type Auditor struct {
	sink      AuditSink
	publisher events.Publisher
	queue     chan models.AuditLog
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewAuditor(sink AuditSink, publisher events.Publisher, bufferSize int, m *metrics.Metrics, log *zap.Logger) *Auditor {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Auditor{
		sink:      sink,
		publisher: publisher,
		queue:     make(chan models.AuditLog, bufferSize),
		metrics:   m,
		log:       log,
	}
}

func (a *Auditor) Record(rec models.AuditLog) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	select {
	case a.queue <- rec:
	default:
		a.metrics.AuditDropped.Inc()
		a.log.Warn("audit queue full, dropping record",
			zap.String("action", rec.Action),
			zap.String("entity_type", rec.EntityType),
			zap.String("entity_id", rec.EntityID),
		)
	}
}

// Run writes queued records until ctx is done, then flushes what is left.
func (a *Auditor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			a.Drain(flushCtx)
			cancel()
			return nil
		case rec := <-a.queue:
			a.write(ctx, rec)
		}
	}
}

// Drain writes every record queued at the time of the call.
func (a *Auditor) Drain(ctx context.Context) {
	for {
		select {
		case rec := <-a.queue:
			a.write(ctx, rec)
		default:
			return
		}
	}
}

func (a *Auditor) write(ctx context.Context, rec models.AuditLog) {
	if err := a.sink.Log(ctx, rec); err != nil {
		a.log.Error("failed to write audit record",
			zap.String("action", rec.Action),
			zap.String("entity_id", rec.EntityID),
			zap.Error(err),
		)
	}
	if a.publisher == nil {
		return
	}
	payload := map[string]any{
		"action":      rec.Action,
		"entity_type": rec.EntityType,
		"entity_id":   rec.EntityID,
		"actor_type":  rec.ActorType,
		"at":          rec.CreatedAt.Format(time.RFC3339Nano),
	}
	if rec.ActorUserID != nil {
		payload["actor_user_id"] = rec.ActorUserID.String()
	}
	for k, v := range rec.Meta {
		payload[k] = v
	}
	if err := a.publisher.Publish(ctx, events.StreamLedger, events.Event{
		Type:    eventTypeFor(rec.Action),
		Payload: payload,
	}); err != nil {
		a.log.Warn("failed to publish ledger event", zap.String("action", rec.Action), zap.Error(err))
	}
}

func eventTypeFor(action string) string {
	switch {
	case strings.HasPrefix(action, "ledger_"):
		return events.EventTransactionPosted
	case strings.HasPrefix(action, "dispute_"):
		return events.EventDispute
	case action == models.AuditCampaignCreated, action == models.AuditCampaignModerated,
		action == models.AuditCampaignStatus, action == models.AuditProviderAssigned:
		return events.EventCampaign
	case strings.HasPrefix(action, "campaign_"):
		return events.EventConfirmation
	}
	return events.EventActivity
}
