package handlers

import (
	"github.com/directaid/backend/internal/config"
	"github.com/directaid/backend/internal/http/dto"
	"github.com/directaid/backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

type MetaHandler struct {
	cfg *config.Config
}

func NewMetaHandler(cfg *config.Config) *MetaHandler {
	return &MetaHandler{cfg: cfg}
}

type MetaAccount struct {
	ID    models.Account `json:"id"`
	Label string         `json:"label"`
}

var accountLabels = map[models.Account]string{
	models.AccountUserWallet:             "Donor wallet",
	models.AccountCampaignEscrow:         "Campaign escrow",
	models.AccountProviderBalance:        "Provider balance",
	models.AccountPlatformRevenue:        "Platform revenue",
	models.AccountTaxPayableVAT:          "VAT payable",
	models.AccountTaxPayableWHT:          "Withholding tax payable",
	models.AccountRefundLiability:        "Refunds owed to donors",
	models.AccountPaymentGatewayClearing: "Payment gateway clearing",
}

type MetaLedger struct {
	Currency      string `json:"currency"`
	PlatformFee   int    `json:"platform_fee_bps"`
	VAT           int    `json:"vat_bps"`
	WHT           int    `json:"wht_bps"`
	ReleasePolicy string `json:"release_policy"`
}

func (h *MetaHandler) GetAccounts(c *fiber.Ctx) error {
	accounts := make([]MetaAccount, 0, len(models.ChartOfAccounts))
	for _, a := range models.ChartOfAccounts {
		accounts = append(accounts, MetaAccount{ID: a, Label: accountLabels[a]})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: accounts})
}

func (h *MetaHandler) GetLedgerSettings(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: MetaLedger{
		Currency:      h.cfg.DefaultCurrency,
		PlatformFee:   h.cfg.PlatformFeeBPS,
		VAT:           h.cfg.VATBPS,
		WHT:           h.cfg.WHTBPS,
		ReleasePolicy: h.cfg.EscrowReleasePolicy,
	}})
}
