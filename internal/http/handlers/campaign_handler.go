package handlers

import (
	"strings"

	"github.com/directaid/backend/internal/config"
	"github.com/directaid/backend/internal/http/dto"
	"github.com/directaid/backend/internal/middleware"
	"github.com/directaid/backend/internal/models"
	"github.com/directaid/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CampaignHandler struct {
	campaignService *services.CampaignService
	escrow          *services.EscrowStateMachine
	balances        *services.BalanceCalculator
	cfg             *config.Config
	log             *zap.Logger
}

func NewCampaignHandler(
	campaignService *services.CampaignService,
	escrow *services.EscrowStateMachine,
	balances *services.BalanceCalculator,
	cfg *config.Config,
	log *zap.Logger,
) *CampaignHandler {
	return &CampaignHandler{
		campaignService: campaignService,
		escrow:          escrow,
		balances:        balances,
		cfg:             cfg,
		log:             log,
	}
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	campaign := &models.Campaign{
		Title:        req.Title,
		Description:  req.Description,
		TargetAmount: req.TargetAmount,
		Currency:     req.Currency,
	}
	if err := h.campaignService.Create(c.UserContext(), middleware.GetActor(c), campaign); err != nil {
		return writeError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}

	campaign, err := h.campaignService.Get(c.UserContext(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	filter := models.CampaignFilter{
		Limit:  queryInt(c, "limit", 20),
		Offset: queryInt(c, "offset", 0),
	}
	if v := c.Query("status"); v != "" {
		s := strings.ToUpper(v)
		filter.Status = &s
	}
	if v := c.Query("admin_status"); v != "" {
		s := strings.ToLower(v)
		filter.AdminStatus = &s
	}
	if v := c.Query("beneficiary_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return badRequest(c, "invalid beneficiary_id")
		}
		filter.BeneficiaryID = &id
	}
	if v := c.Query("provider_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return badRequest(c, "invalid provider_id")
		}
		filter.ProviderID = &id
	}

	campaigns, err := h.campaignService.List(c.UserContext(), filter)
	if err != nil {
		return writeError(c, h.log, err)
	}
	if campaigns == nil {
		campaigns = []models.Campaign{}
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: campaigns})
}

func (h *CampaignHandler) AssignProvider(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}
	var req dto.AssignProviderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	campaign, err := h.campaignService.AssignProvider(c.UserContext(), middleware.GetActor(c), id, req.ProviderID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) ModerateCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}
	var req dto.ModerateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	campaign, err := h.campaignService.Moderate(c.UserContext(), middleware.GetActor(c), id, strings.ToLower(req.AdminStatus))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) CancelCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}
	campaign, err := h.campaignService.Cancel(c.UserContext(), middleware.GetActor(c), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) CompleteCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}
	campaign, err := h.campaignService.Complete(c.UserContext(), middleware.GetActor(c), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) ConfirmProvider(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}
	conf, err := h.escrow.ConfirmProvider(c.UserContext(), id, middleware.GetActor(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: conf})
}

func (h *CampaignHandler) ConfirmBeneficiary(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}
	conf, err := h.escrow.ConfirmBeneficiary(c.UserContext(), id, middleware.GetActor(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: conf})
}

func (h *CampaignHandler) GetConfirmation(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}
	conf, err := h.escrow.Status(c.UserContext(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{
		"confirmation": conf,
		"policy":       h.escrow.Policy(),
	}})
}

// GetBalances is the public transparency view of a campaign's money.
func (h *CampaignHandler) GetBalances(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}
	ctx := c.UserContext()
	campaign, err := h.campaignService.Get(ctx, id)
	if err != nil {
		return writeError(c, h.log, err)
	}

	f := models.EntryFilter{Currency: campaign.Currency, CampaignID: id}
	resp := dto.CampaignBalancesResponse{CampaignID: id.String(), Currency: campaign.Currency}
	if resp.Escrow, err = h.balances.BalanceOf(ctx, models.AccountCampaignEscrow, f); err != nil {
		return writeError(c, h.log, err)
	}
	if resp.RefundLiability, err = h.balances.BalanceOf(ctx, models.AccountRefundLiability, f); err != nil {
		return writeError(c, h.log, err)
	}
	if resp.ProviderBalance, err = h.balances.BalanceOf(ctx, models.AccountProviderBalance, f); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(resp)
}
