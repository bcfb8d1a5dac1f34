package handlers

import (
	"context"

	"github.com/directaid/backend/internal/http/dto"
	"github.com/directaid/backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuditReader interface {
	GetByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]models.AuditLog, error)
}

type AuditHandler struct {
	reader AuditReader
	log    *zap.Logger
}

func NewAuditHandler(reader AuditReader, log *zap.Logger) *AuditHandler {
	return &AuditHandler{reader: reader, log: log}
}

// GetEntityHistory lists activity for one entity, newest first.
func (h *AuditHandler) GetEntityHistory(c *fiber.Ctx) error {
	logs, err := h.reader.GetByEntity(c.UserContext(), c.Params("entityType"), c.Params("entityId"),
		queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		return writeError(c, h.log, err)
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: logs})
}
