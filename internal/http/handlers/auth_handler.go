package handlers

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/directaid/backend/internal/auth"
	"github.com/directaid/backend/internal/config"
	"github.com/directaid/backend/internal/http/dto"
	"github.com/directaid/backend/internal/rbac"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthHandler mints actor tokens for the app backend, which owns user
// accounts and sessions.
type AuthHandler struct {
	cfg *config.Config
	log *zap.Logger
}

func NewAuthHandler(cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, log: log}
}

func (h *AuthHandler) IssueToken(c *fiber.Ctx) error {
	if h.cfg.ServiceAPIKey == "" {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "token endpoint disabled"})
	}
	key := c.Get("X-Service-Key")
	if subtle.ConstantTimeCompare([]byte(key), []byte(h.cfg.ServiceAPIKey)) != 1 {
		h.log.Warn("token request with bad service key", zap.String("ip", c.IP()))
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid service key"})
	}

	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	req.Role = strings.ToUpper(req.Role)
	if !rbac.ValidRole(req.Role) {
		return badRequest(c, "unknown role")
	}
	if req.Role != rbac.RoleSystem && req.UserID == uuid.Nil {
		return badRequest(c, "user_id is required")
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, req.UserID, req.Role, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("failed to generate jwt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	h.log.Info("token issued", zap.String("user_id", req.UserID.String()), zap.String("role", req.Role))
	return c.JSON(dto.TokenResponse{Token: token, ExpiresAt: time.Now().Add(h.cfg.JWTExpiration)})
}
