package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnold/tribes-api/internal/models"
)

func TestGetOrCreateTribeIsStable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.Tribes.GetOrCreateForFrequency(ctx, models.FrequencyDaily)
	require.NoError(t, err)
	second, err := h.Tribes.GetOrCreateForFrequency(ctx, models.FrequencyDaily)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	weekly, err := h.Tribes.GetOrCreateForFrequency(ctx, models.FrequencyWeekly)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, weekly.ID)

	var n int64
	require.NoError(t, h.db.Model(&models.Tribe{}).Where("frequency = ?", models.FrequencyDaily).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	_, err = h.Tribes.GetOrCreateForFrequency(ctx, "yearly")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTribeFrequencyIsUnique(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.db.Create(&models.Tribe{Frequency: models.FrequencyMonthly}).Error)
	assert.Error(t, h.db.Create(&models.Tribe{Frequency: models.FrequencyMonthly}).Error)
}

func TestAssignIsIdempotentAndKeepsOtherMemberships(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")

	daily, err := h.Tribes.AssignUserToFrequencyTribe(ctx, alice, models.FrequencyDaily)
	require.NoError(t, err)
	again, err := h.Tribes.AssignUserToFrequencyTribe(ctx, alice, models.FrequencyDaily)
	require.NoError(t, err)
	assert.Equal(t, daily.ID, again.ID)

	_, err = h.Tribes.AssignUserToFrequencyTribe(ctx, alice, models.FrequencyWeekly)
	require.NoError(t, err)

	tribes, err := h.Tribes.UserTribes(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, tribes, 2)
}

func TestRemoveUserFromTribe(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")
	g := h.goal(t, alice, models.FrequencyDaily)
	tribe, err := h.Tribes.GetOrCreateForFrequency(ctx, models.FrequencyDaily)
	require.NoError(t, err)

	assert.ErrorIs(t, h.Tribes.RemoveUserFromTribe(ctx, bob, alice.UserID, tribe.ID), ErrAuthorization)
	require.NoError(t, h.Tribes.RemoveUserFromTribe(ctx, alice, alice.UserID, tribe.ID))
	assert.ErrorIs(t, h.Tribes.RemoveUserFromTribe(ctx, alice, alice.UserID, tribe.ID), ErrNotFound)

	// goal data is untouched
	_, err = h.Goals.Get(ctx, alice, g.ID)
	assert.NoError(t, err)
	assert.Contains(t, h.events.types(), EventMemberLeft)
}

func TestListMembers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")
	_, err := h.Users.UpdateProfile(ctx, bob, models.UpdateProfileRequest{
		ProfileDetails: map[string]any{"avatar": "https://cdn.example.com/bob.png"},
	})
	require.NoError(t, err)

	ga := h.goal(t, alice, models.FrequencyDaily)
	h.clock.Set(jan1.Add(time.Minute))
	h.goal(t, bob, models.FrequencyDaily)

	h.clock.Set(jan1.Add(time.Hour))
	_, err = h.CheckIns.Add(ctx, alice, ga.ID, models.CheckInRequest{Content: "one"})
	require.NoError(t, err)
	h.clock.Set(jan1.Add(3 * time.Hour))
	_, err = h.CheckIns.Add(ctx, alice, ga.ID, models.CheckInRequest{Content: "two"})
	require.NoError(t, err)

	tribe, err := h.Tribes.GetOrCreateForFrequency(ctx, models.FrequencyDaily)
	require.NoError(t, err)
	members, err := h.Tribes.ListMembers(ctx, bob, tribe.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	assert.Equal(t, "alice", members[0].Username)
	assert.Equal(t, 2, members[0].CheckInCount)
	require.NotNil(t, members[0].LastActive)
	assert.True(t, jan1.Add(3*time.Hour).Equal(*members[0].LastActive))

	assert.Equal(t, "bob", members[1].Username)
	assert.Equal(t, "https://cdn.example.com/bob.png", members[1].Avatar)
	assert.Zero(t, members[1].CheckInCount)
	assert.Nil(t, members[1].LastActive)

	outsider := h.user(t, "carol")
	_, err = h.Tribes.ListMembers(ctx, outsider, tribe.ID)
	assert.ErrorIs(t, err, ErrAuthorization)
}

func TestListTribes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.goal(t, h.user(t, "alice"), models.FrequencyDaily)
	h.goal(t, h.user(t, "bob"), models.FrequencyDaily)
	_, err := h.Tribes.GetOrCreateForFrequency(ctx, models.FrequencyMonthly)
	require.NoError(t, err)

	tribes, err := h.Tribes.ListTribes(ctx)
	require.NoError(t, err)
	require.Len(t, tribes, 2)

	counts := map[models.Frequency]int64{}
	for _, tr := range tribes {
		counts[tr.Frequency] = tr.MemberCount
	}
	assert.EqualValues(t, 2, counts[models.FrequencyDaily])
	assert.EqualValues(t, 0, counts[models.FrequencyMonthly])
}

func TestDeleteTribe(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	root := h.admin(t, "root")
	h.goal(t, alice, models.FrequencyWeekly)
	tribe, err := h.Tribes.GetOrCreateForFrequency(ctx, models.FrequencyWeekly)
	require.NoError(t, err)

	assert.ErrorIs(t, h.Tribes.DeleteTribe(ctx, alice, tribe.ID), ErrAuthorization)
	require.NoError(t, h.Tribes.DeleteTribe(ctx, root, tribe.ID))
	assert.ErrorIs(t, h.Tribes.DeleteTribe(ctx, root, tribe.ID), ErrNotFound)

	tribes, err := h.Tribes.UserTribes(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, tribes)
}

func TestMoveUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	root := h.admin(t, "root")
	h.goal(t, alice, models.FrequencyDaily)
	_, err := h.Tribes.AssignUserToFrequencyTribe(ctx, alice, models.FrequencyWeekly)
	require.NoError(t, err)
	monthly, err := h.Tribes.GetOrCreateForFrequency(ctx, models.FrequencyMonthly)
	require.NoError(t, err)

	assert.ErrorIs(t, h.Tribes.MoveUser(ctx, alice, alice.UserID, monthly.ID), ErrAuthorization)
	require.NoError(t, h.Tribes.MoveUser(ctx, root, alice.UserID, monthly.ID))

	tribes, err := h.Tribes.UserTribes(ctx, alice)
	require.NoError(t, err)
	require.Len(t, tribes, 1)
	assert.Equal(t, monthly.ID, tribes[0].ID)

	err = h.Tribes.MoveUser(ctx, root, alice.UserID, root.UserID)
	assert.ErrorIs(t, err, ErrNotFound)
}
