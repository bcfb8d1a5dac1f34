package services

import (
	"context"
	"testing"

	"github.com/directaid/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRaiseDispute(t *testing.T) {
	env := newTestEnv(t, models.ReleaseSingle)
	c := env.activeCampaign(t)
	ctx := context.Background()
	env.donate(t, c, "tx-d1", "don-1", "10")

	_, err := env.disputes.Raise(ctx, models.DisputeEntityDonation, "don-404", env.donor, "where is it")
	require.ErrorIs(t, err, models.ErrNotFound)

	_, err = env.disputes.Raise(ctx, models.DisputeEntityDonation, "don-1", env.donor, "  ")
	require.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = env.disputes.Raise(ctx, "INVOICE", "inv-1", env.donor, "bad")
	require.ErrorIs(t, err, models.ErrInvalidInput)

	d, err := env.disputes.Raise(ctx, models.DisputeEntityDonation, "don-1", env.donor, "double charge")
	require.NoError(t, err)
	require.Equal(t, models.DisputeOpen, d.Status)
	require.Equal(t, c.ID, d.CampaignID)
	require.Equal(t, env.donor.ID, d.RaisedBy)

	frozen, err := env.disputes.IsFrozen(ctx, models.DisputeEntityDonation, "don-1")
	require.NoError(t, err)
	require.True(t, frozen)
	frozen, err = env.disputes.HasFrozenForCampaign(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, frozen)

	_, err = env.disputes.Raise(ctx, models.DisputeEntityDonation, "don-1", env.beneficiary, "me too")
	require.ErrorIs(t, err, models.ErrInvalidState)
}

func TestDisputeLifecycle(t *testing.T) {
	env := newTestEnv(t, models.ReleaseSingle)
	ctx := context.Background()

	d, err := env.disputes.Raise(ctx, models.DisputeEntityPayout, "po-1", env.beneficiary, "overbilled")
	require.NoError(t, err)
	require.Equal(t, uuid.Nil, d.CampaignID)

	_, err = env.disputes.StartReview(ctx, d.ID, env.beneficiary)
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	d, err = env.disputes.StartReview(ctx, d.ID, env.admin)
	require.NoError(t, err)
	require.Equal(t, models.DisputeUnderReview, d.Status)

	_, err = env.disputes.StartReview(ctx, d.ID, env.admin)
	require.ErrorIs(t, err, models.ErrInvalidState)

	_, err = env.disputes.Resolve(ctx, d.ID, env.admin, models.ResolutionRefund, "")
	require.ErrorIs(t, err, models.ErrInvalidInput)

	d, err = env.disputes.Resolve(ctx, d.ID, env.admin, models.ResolutionNone, "invoice is correct")
	require.NoError(t, err)
	require.Equal(t, models.DisputeResolved, d.Status)
	require.Equal(t, models.ResolutionNone, d.Resolution.Action)
	require.NotNil(t, d.ResolvedAt)
	require.Equal(t, env.admin.ID, *d.ResolvedBy)

	_, err = env.disputes.Reject(ctx, d.ID, env.admin, "")
	require.ErrorIs(t, err, models.ErrInvalidState)

	frozen, err := env.disputes.IsFrozen(ctx, models.DisputeEntityPayout, "po-1")
	require.NoError(t, err)
	require.False(t, frozen)

	// Closed disputes do not block a new one on the same entity.
	_, err = env.disputes.Raise(ctx, models.DisputeEntityPayout, "po-1", env.beneficiary, "still overbilled")
	require.NoError(t, err)
}

func TestRejectUnfreezes(t *testing.T) {
	env := newTestEnv(t, models.ReleaseSingle)
	c := env.activeCampaign(t)
	ctx := context.Background()
	env.donate(t, c, "tx-d1", "don-1", "40")
	env.confirmBoth(t, c)

	d, err := env.disputes.Raise(ctx, models.DisputeEntityDonation, "don-1", env.donor, "unsure")
	require.NoError(t, err)

	_, err = env.disputes.Reject(ctx, d.ID, env.donor, "")
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	d, err = env.disputes.Reject(ctx, d.ID, env.admin, "no evidence")
	require.NoError(t, err)
	require.Equal(t, models.DisputeRejected, d.Status)

	_, err = env.poster.Post(ctx, env.system, models.EscrowRelease{TxID: "tx-r1", CampaignID: c.ID, Amount: dec("40")})
	require.NoError(t, err)

	// A rejected dispute authorizes no settlement.
	_, err = env.poster.Post(ctx, env.admin, models.Refund{TxID: "tx-rf1", CampaignID: c.ID, DonationID: "don-1", Amount: dec("1"), DisputeID: d.ID})
	require.ErrorIs(t, err, models.ErrInvalidState)
}

func TestListDisputes(t *testing.T) {
	env := newTestEnv(t, models.ReleaseSingle)
	ctx := context.Background()
	for _, id := range []string{"po-1", "po-2", "po-3"} {
		_, err := env.disputes.Raise(ctx, models.DisputeEntityPayout, id, env.beneficiary, "check")
		require.NoError(t, err)
	}

	all, err := env.disputes.List(ctx, models.DisputeFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	entity := "po-2"
	one, err := env.disputes.List(ctx, models.DisputeFilter{EntityID: &entity})
	require.NoError(t, err)
	require.Len(t, one, 1)
	require.Equal(t, "po-2", one[0].EntityID)

	status := models.DisputeResolved
	none, err := env.disputes.List(ctx, models.DisputeFilter{Status: &status})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestDisputePermissions(t *testing.T) {
	env := newTestEnv(t, models.ReleaseSingle)
	c := env.activeCampaign(t)
	ctx := context.Background()
	env.donate(t, c, "tx-d1", "don-1", "10")

	_, err := env.disputes.Raise(ctx, models.DisputeEntityDonation, "don-1", env.system, "webhook mismatch")
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	d, err := env.disputes.Raise(ctx, models.DisputeEntityDonation, "don-1", env.donor, "double charge")
	require.NoError(t, err)

	for _, actor := range []models.Actor{env.system, env.donor, env.provider, env.beneficiary} {
		_, err = env.disputes.StartReview(ctx, d.ID, actor)
		require.ErrorIs(t, err, models.ErrNotAuthorized, actor.Role)
		_, err = env.disputes.Resolve(ctx, d.ID, actor, models.ResolutionRefund, "")
		require.ErrorIs(t, err, models.ErrNotAuthorized, actor.Role)
		_, err = env.disputes.Reject(ctx, d.ID, actor, "")
		require.ErrorIs(t, err, models.ErrNotAuthorized, actor.Role)
	}

	stored, err := env.disputes.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, models.DisputeOpen, stored.Status)
}
