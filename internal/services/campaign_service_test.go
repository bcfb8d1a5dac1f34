package services

import (
	"context"
	"testing"

	"github.com/directaid/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCreateCampaign(t *testing.T) {
	env := newTestEnv(t, models.ReleaseSingle)
	ctx := context.Background()

	c := &models.Campaign{Title: "School desks", TargetAmount: dec("2500"), Currency: "ngn"}
	require.NoError(t, env.campaigns.Create(ctx, env.beneficiary, c))
	require.Equal(t, env.beneficiary.ID, c.BeneficiaryID)
	require.Equal(t, "NGN", c.Currency)
	require.Equal(t, models.CampaignStatusActive, c.Status)
	require.Equal(t, models.ModerationPending, c.AdminStatus)
	require.False(t, c.AcceptsDonations())

	err := env.campaigns.Create(ctx, env.donor, &models.Campaign{Title: "x", TargetAmount: dec("1")})
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	err = env.campaigns.Create(ctx, env.beneficiary, &models.Campaign{Title: "x", TargetAmount: dec("0")})
	require.ErrorIs(t, err, models.ErrInvalidInput)

	err = env.campaigns.Create(ctx, env.beneficiary, &models.Campaign{Title: "x", TargetAmount: dec("10.00001")})
	require.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestModerationTransitions(t *testing.T) {
	env := newTestEnv(t, models.ReleaseSingle)
	ctx := context.Background()
	c := &models.Campaign{Title: "Water", TargetAmount: dec("10")}
	require.NoError(t, env.campaigns.Create(ctx, env.beneficiary, c))

	_, err := env.campaigns.Moderate(ctx, env.beneficiary, c.ID, models.ModerationApproved)
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	got, err := env.campaigns.Moderate(ctx, env.admin, c.ID, models.ModerationFlagged)
	require.NoError(t, err)
	require.Equal(t, models.ModerationFlagged, got.AdminStatus)

	got, err = env.campaigns.Moderate(ctx, env.admin, c.ID, models.ModerationRejected)
	require.NoError(t, err)
	require.Equal(t, models.ModerationRejected, got.AdminStatus)

	_, err = env.campaigns.Moderate(ctx, env.admin, c.ID, models.ModerationApproved)
	require.ErrorIs(t, err, models.ErrInvalidState)
}

func TestAssignProvider(t *testing.T) {
	env := newTestEnv(t, models.ReleaseSingle)
	ctx := context.Background()
	c := &models.Campaign{Title: "Meds", TargetAmount: dec("10")}
	require.NoError(t, env.campaigns.Create(ctx, env.beneficiary, c))

	_, err := env.campaigns.AssignProvider(ctx, env.beneficiary, c.ID, env.provider.ID)
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	got, err := env.campaigns.AssignProvider(ctx, env.admin, c.ID, env.provider.ID)
	require.NoError(t, err)
	require.True(t, got.HasProvider())

	_, err = env.campaigns.AssignProvider(ctx, env.admin, c.ID, env.provider.ID)
	require.NoError(t, err)
	_, err = env.campaigns.AssignProvider(ctx, env.admin, c.ID, uuid.New())
	require.ErrorIs(t, err, models.ErrInvalidState)

	mine, err := env.campaigns.List(ctx, models.CampaignFilter{ProviderID: &env.provider.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
}

func TestCampaignStatusTransitions(t *testing.T) {
	env := newTestEnv(t, models.ReleaseSingle)
	ctx := context.Background()
	c := env.activeCampaign(t)

	_, err := env.campaigns.Cancel(ctx, env.donor, c.ID)
	require.ErrorIs(t, err, models.ErrNotAuthorized)
	_, err = env.campaigns.Cancel(ctx, env.system, c.ID)
	require.ErrorIs(t, err, models.ErrNotAuthorized)
	_, err = env.campaigns.Complete(ctx, env.beneficiary, c.ID)
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	got, err := env.campaigns.Complete(ctx, env.admin, c.ID)
	require.NoError(t, err)
	require.Equal(t, models.CampaignStatusCompleted, got.Status)

	_, err = env.campaigns.Cancel(ctx, env.admin, c.ID)
	require.ErrorIs(t, err, models.ErrInvalidState)

	_, err = env.poster.Post(ctx, env.system, models.Donation{TxID: "late", CampaignID: c.ID, DonationID: "d", Amount: dec("1")})
	require.ErrorIs(t, err, models.ErrInvalidState)
}
