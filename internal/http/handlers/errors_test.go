package handlers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/directaid/backend/internal/models"
	"github.com/directaid/backend/internal/rbac"
	"github.com/gofiber/fiber/v2"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", fmt.Errorf("%w: amount must be positive", models.ErrInvalidInput), fiber.StatusBadRequest},
		{"not authorized", models.ErrNotAuthorized, fiber.StatusForbidden},
		{"not found", fmt.Errorf("%w: campaign x", models.ErrNotFound), fiber.StatusNotFound},
		{"invalid state", models.ErrInvalidState, fiber.StatusConflict},
		{"idempotency conflict", models.ErrIdempotencyConflict, fiber.StatusConflict},
		{"duplicate", models.ErrDuplicateTransaction, fiber.StatusConflict},
		{"imbalanced", models.ErrImbalancedTransaction, fiber.StatusUnprocessableEntity},
		{"insufficient", fmt.Errorf("%w: escrow", models.ErrInsufficientBalance), fiber.StatusUnprocessableEntity},
		{"escrow locked", fmt.Errorf("%w: cannot release funds: awaiting provider confirmation", models.ErrEscrowLocked), fiber.StatusLocked},
		{"payout locked", models.ErrPayoutLocked, fiber.StatusLocked},
		{"store unavailable", fmt.Errorf("%w: connection refused", models.ErrStoreUnavailable), fiber.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, fiber.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestCanView(t *testing.T) {
	donor := models.Actor{ID: [16]byte{1}, Role: rbac.RoleDonor}
	provider := models.Actor{ID: [16]byte{2}, Role: rbac.RoleProvider}
	admin := models.Actor{ID: [16]byte{3}, Role: rbac.RoleAdmin}

	tests := []struct {
		name    string
		actor   models.Actor
		account models.Account
		filter  models.EntryFilter
		want    bool
	}{
		{"admin sees revenue", admin, models.AccountPlatformRevenue, models.EntryFilter{}, true},
		{"system sees escrow", models.SystemActor, models.AccountCampaignEscrow, models.EntryFilter{}, true},
		{"donor own wallet", donor, models.AccountUserWallet, models.EntryFilter{DonorID: donor.ID}, true},
		{"donor other wallet", donor, models.AccountUserWallet, models.EntryFilter{DonorID: provider.ID}, false},
		{"donor unscoped wallet", donor, models.AccountUserWallet, models.EntryFilter{}, false},
		{"provider own balance", provider, models.AccountProviderBalance, models.EntryFilter{ProviderID: provider.ID}, true},
		{"provider escrow", provider, models.AccountCampaignEscrow, models.EntryFilter{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canView(tt.actor, tt.account, tt.filter); got != tt.want {
				t.Errorf("canView() = %v, want %v", got, tt.want)
			}
		})
	}
}
