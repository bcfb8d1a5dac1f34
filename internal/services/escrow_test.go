package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/directaid/backend/internal/models"
	"github.com/directaid/backend/internal/rbac"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestConfirmationHandshake(t *testing.T) {
	env := newTestEnv(t, models.ReleaseSingle)
	c := env.activeCampaign(t)
	ctx := context.Background()

	st, err := env.escrow.Status(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, models.ConfirmationNone, st.Status)

	_, err = env.escrow.ConfirmBeneficiary(ctx, c.ID, env.beneficiary)
	require.ErrorIs(t, err, models.ErrInvalidState)

	_, err = env.escrow.ConfirmProvider(ctx, c.ID, env.beneficiary)
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	st, err = env.escrow.ConfirmProvider(ctx, c.ID, env.provider)
	require.NoError(t, err)
	require.Equal(t, models.ConfirmationProviderConfirmed, st.Status)
	require.NotNil(t, st.ProviderConfirmedAt)

	_, err = env.escrow.ConfirmProvider(ctx, c.ID, env.provider)
	require.ErrorIs(t, err, models.ErrInvalidState)

	_, err = env.escrow.ConfirmBeneficiary(ctx, c.ID, env.provider)
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	st, err = env.escrow.ConfirmBeneficiary(ctx, c.ID, env.beneficiary)
	require.NoError(t, err)
	require.Equal(t, models.ConfirmationBothConfirmed, st.Status)
	require.NotNil(t, st.BeneficiaryConfirmedAt)

	// Single policy never closes the round.
	require.NoError(t, env.escrow.CompleteTranche(ctx, c.ID))
	st, err = env.escrow.Status(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, models.ConfirmationBothConfirmed, st.Status)
}

func TestConfirmationNeedsAssignedProvider(t *testing.T) {
	env := newTestEnv(t, models.ReleaseSingle)
	ctx := context.Background()
	c := &models.Campaign{Title: "Books", TargetAmount: dec("10")}
	require.NoError(t, env.campaigns.Create(ctx, env.beneficiary, c))

	_, err := env.escrow.ConfirmProvider(ctx, c.ID, env.provider)
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	_, err = env.escrow.Status(ctx, uuid.New())
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestConcurrentConfirmationsOneWins(t *testing.T) {
	env := newTestEnv(t, models.ReleaseSingle)
	c := env.activeCampaign(t)

	var won, lost atomic.Int32
	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			_, err := env.escrow.ConfirmProvider(context.Background(), c.ID, env.provider)
			switch {
			case err == nil:
				won.Add(1)
			case errors.Is(err, models.ErrInvalidState):
				lost.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 1, won.Load())
	require.EqualValues(t, 15, lost.Load())
}

func TestConfirmationIsAudited(t *testing.T) {
	env := newTestEnv(t, models.ReleasePerTranche)
	c := env.activeCampaign(t)
	ctx := context.Background()
	env.confirmBoth(t, c)
	require.NoError(t, env.escrow.CompleteTranche(ctx, c.ID))

	env.auditor.Drain(ctx)
	var actions []string
	for _, rec := range env.audit.Entries() {
		if rec.EntityType == "campaign" && rec.EntityID == c.ID.String() {
			actions = append(actions, rec.Action)
		}
	}
	require.Contains(t, actions, models.AuditProviderConfirmed)
	require.Contains(t, actions, models.AuditBeneficiaryConfirm)
	require.Contains(t, actions, models.AuditTrancheCompleted)
}

func TestConfirmationNeedsDeliveryPermission(t *testing.T) {
	env := newTestEnv(t, models.ReleaseSingle)
	c := env.activeCampaign(t)
	ctx := context.Background()

	asDonor := models.Actor{ID: env.provider.ID, Role: rbac.RoleDonor}
	_, err := env.escrow.ConfirmProvider(ctx, c.ID, asDonor)
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	_, err = env.escrow.ConfirmProvider(ctx, c.ID, env.provider)
	require.NoError(t, err)

	asAdmin := models.Actor{ID: env.beneficiary.ID, Role: rbac.RoleAdmin}
	_, err = env.escrow.ConfirmBeneficiary(ctx, c.ID, asAdmin)
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	st, err := env.escrow.Status(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, models.ConfirmationProviderConfirmed, st.Status)
}
