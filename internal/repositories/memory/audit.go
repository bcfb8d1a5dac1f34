package memory

import (
	"context"
	"sync"
	"time"

	"github.com/directaid/backend/internal/models"
	"github.com/google/uuid"
)

type AuditSink struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func NewAuditSink() *AuditSink { return &AuditSink{} }

func (s *AuditSink) Log(ctx context.Context, entry models.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
	return nil
}

// Entries returns a copy of everything logged so far, oldest first.
func (s *AuditSink) Entries() []models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AuditLog(nil), s.entries...)
}

// GetByEntity returns the entity's records newest first.
func (s *AuditSink) GetByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	var out []models.AuditLog
	for i := len(s.entries) - 1; i >= 0; i-- {
		if e := s.entries[i]; e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	s.mu.Unlock()
	return page(out, limit, offset), nil
}
