package handlers

import (
	"strings"

	"github.com/directaid/backend/internal/http/dto"
	"github.com/directaid/backend/internal/middleware"
	"github.com/directaid/backend/internal/models"
	"github.com/directaid/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type DisputeHandler struct {
	disputes *services.DisputeManager
	log      *zap.Logger
}

func NewDisputeHandler(disputes *services.DisputeManager, log *zap.Logger) *DisputeHandler {
	return &DisputeHandler{disputes: disputes, log: log}
}

func (h *DisputeHandler) RaiseDispute(c *fiber.Ctx) error {
	var req dto.RaiseDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	entityType := models.DisputeEntityType(strings.ToUpper(req.EntityType))

	d, err := h.disputes.Raise(c.UserContext(), entityType, req.EntityID, middleware.GetActor(c), req.Reason)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: d})
}

func (h *DisputeHandler) GetDispute(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid dispute id")
	}
	d, err := h.disputes.Get(c.UserContext(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: d})
}

func (h *DisputeHandler) ListDisputes(c *fiber.Ctx) error {
	filter := models.DisputeFilter{
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	if v := c.Query("status"); v != "" {
		s := models.DisputeStatus(strings.ToUpper(v))
		filter.Status = &s
	}
	if v := c.Query("entity_type"); v != "" {
		t := models.DisputeEntityType(strings.ToUpper(v))
		filter.EntityType = &t
	}
	if v := c.Query("entity_id"); v != "" {
		filter.EntityID = &v
	}
	if v := c.Query("campaign_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return badRequest(c, "invalid campaign_id")
		}
		filter.CampaignID = &id
	}

	disputes, err := h.disputes.List(c.UserContext(), filter)
	if err != nil {
		return writeError(c, h.log, err)
	}
	if disputes == nil {
		disputes = []models.Dispute{}
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: disputes})
}

func (h *DisputeHandler) StartReview(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid dispute id")
	}
	d, err := h.disputes.StartReview(c.UserContext(), id, middleware.GetActor(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: d})
}

func (h *DisputeHandler) ResolveDispute(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid dispute id")
	}
	var req dto.ResolveDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	action := models.ResolutionAction(strings.ToUpper(req.Action))

	d, err := h.disputes.Resolve(c.UserContext(), id, middleware.GetActor(c), action, req.Notes)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: d})
}

func (h *DisputeHandler) RejectDispute(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid dispute id")
	}
	var req dto.RejectDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	d, err := h.disputes.Reject(c.UserContext(), id, middleware.GetActor(c), req.Notes)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: d})
}
