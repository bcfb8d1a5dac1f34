package handlers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/directaid/backend/internal/http/dto"
	"github.com/directaid/backend/internal/middleware"
	"github.com/directaid/backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, models.ErrNotAuthorized):
		return fiber.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrIdempotencyConflict),
		errors.Is(err, models.ErrDuplicateTransaction):
		return fiber.StatusConflict
	case errors.Is(err, models.ErrImbalancedTransaction),
		errors.Is(err, models.ErrInsufficientBalance):
		return fiber.StatusUnprocessableEntity
	case models.IsLocked(err):
		return fiber.StatusLocked
	case models.IsRetryable(err),
		errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func writeError(c *fiber.Ctx, log *zap.Logger, err error) error {
	status := StatusFor(err)
	reqID, _ := c.Locals(middleware.CtxRequestID).(string)
	resp := dto.ErrorResponse{Error: err.Error(), RequestID: reqID}

	switch status {
	case fiber.StatusInternalServerError:
		log.Error("unhandled error", zap.String("request_id", reqID), zap.String("path", c.Path()), zap.Error(err))
		resp.Error = "internal server error"
	case fiber.StatusServiceUnavailable:
		log.Warn("store unavailable", zap.String("request_id", reqID), zap.Error(err))
		resp.Retryable = true
		c.Set(fiber.HeaderRetryAfter, "1")
	}
	return c.Status(status).JSON(resp)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg})
}

func optionalUUID(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}

func queryInt(c *fiber.Ctx, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func queryTime(c *fiber.Ctx, key string) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
