package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/arnold/tribes-api/internal/models"
)

func strPtr(s string) *string { return &s }

func TestTextCheckInRequiresContent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	g := h.goal(t, alice, models.FrequencyDaily)

	for _, req := range []models.CheckInRequest{
		{},
		{Content: "   "},
		{Photo: strPtr("https://cdn.example.com/run.jpg")},
		{Content: "<p></p>", Photo: strPtr("https://cdn.example.com/run.jpg")},
	} {
		_, err := h.CheckIns.Add(ctx, alice, g.ID, req)
		require.ErrorIs(t, err, ErrValidation)
		var se *Error
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "content", se.Field)
	}

	stored, err := h.Goals.Get(ctx, alice, g.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.CheckInCount)
}

func TestPhotoCheckInRequiresPhoto(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	g := h.goal(t, alice, models.FrequencyDaily)
	require.NoError(t, h.db.Model(&models.Goal{}).Where("goal_id = ?", g.ID).
		Update("check_in_type", models.CheckInPhoto).Error)

	for _, req := range []models.CheckInRequest{
		{},
		{Content: "ran 5k"},
		{Content: "ran 5k", Photo: strPtr("  ")},
	} {
		_, err := h.CheckIns.Add(ctx, alice, g.ID, req)
		require.ErrorIs(t, err, ErrValidation)
		var se *Error
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "photo", se.Field)
	}

	res, err := h.CheckIns.Add(ctx, alice, g.ID, models.CheckInRequest{Photo: strPtr("https://cdn.example.com/run.jpg")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Goal.CheckInCount)
}

func TestCheckInContentLimit(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice")
	g := h.goal(t, alice, models.FrequencyDaily)

	long := make([]byte, 501)
	for i := range long {
		long[i] = 'a'
	}
	_, err := h.CheckIns.Add(context.Background(), alice, g.ID, models.CheckInRequest{Content: string(long)})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCheckInSanitizesContent(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice")
	g := h.goal(t, alice, models.FrequencyDaily)

	res, err := h.CheckIns.Add(context.Background(), alice, g.ID, models.CheckInRequest{
		Content: `<b>ran 5k</b> & stretched<script>alert(1)</script>`,
	})
	require.NoError(t, err)
	assert.Equal(t, "ran 5k & stretched", res.CheckIn.Content)
}

func TestCheckInWithoutActiveGoal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	g := h.goal(t, alice, models.FrequencyDaily)
	_, err := h.Goals.Complete(ctx, alice, g.ID)
	require.NoError(t, err)

	_, err = h.CheckIns.Add(ctx, alice, g.ID, models.CheckInRequest{Content: "one more"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestThreeCheckInsScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	g := h.goal(t, alice, models.FrequencyDaily)
	require.Equal(t, 30, g.Duration)

	var last time.Time
	for day := 1; day <= 3; day++ {
		last = jan1.AddDate(0, 0, day).Add(7 * time.Hour)
		h.clock.Set(last)
		_, err := h.CheckIns.Add(ctx, alice, g.ID, models.CheckInRequest{Content: "morning run"})
		require.NoError(t, err)
	}

	h.clock.Set(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	view, err := h.Goals.Get(ctx, alice, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, view.CheckInCount)
	assert.Equal(t, 30, view.Progress)
	require.NotNil(t, view.LastCheckIn)
	assert.True(t, last.Equal(*view.LastCheckIn))
	assert.Equal(t, 21, view.DaysUntilCompletion)
	assert.Equal(t, 9, view.DaysSinceStart)
}

func TestProgressIsCapped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	g := h.goal(t, alice, models.FrequencyDaily)

	var res *models.CheckInResult
	var err error
	for i := 0; i < 12; i++ {
		res, err = h.CheckIns.Add(ctx, alice, g.ID, models.CheckInRequest{Content: "again"})
		require.NoError(t, err)
	}
	assert.Equal(t, 12, res.Goal.CheckInCount)
	assert.Equal(t, 100, res.Goal.Progress)
	assert.True(t, res.Goal.IsActive)
}

func TestConcurrentCheckInsBothApply(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	g := h.goal(t, alice, models.FrequencyDaily)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.CheckIns.Add(ctx, alice, g.ID, models.CheckInRequest{Content: "tab"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	view, err := h.Goals.Get(ctx, alice, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.CheckInCount)
	assert.Equal(t, 20, view.Progress)
}

// Another writer bumps the goal right after Add has read it. The increment
// must survive Add's own update.
func TestCheckInKeepsInterleavedIncrement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	g := h.goal(t, alice, models.FrequencyDaily)

	var armed atomic.Bool
	armed.Store(true)
	require.NoError(t, h.db.Callback().Query().After("gorm:query").Register("test:interleave", func(db *gorm.DB) {
		if db.Error != nil || db.Statement.Table != "goals" || !armed.CompareAndSwap(true, false) {
			return
		}
		err := db.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE goals SET check_in_count = check_in_count + 1, progress = progress + 10 WHERE goal_id = ?", g.ID).Error
		require.NoError(t, err)
	}))

	res, err := h.CheckIns.Add(ctx, alice, g.ID, models.CheckInRequest{Content: "second tab"})
	require.NoError(t, err)
	require.False(t, armed.Load())
	assert.Equal(t, 2, res.Goal.CheckInCount)
	assert.Equal(t, 20, res.Goal.Progress)

	view, err := h.Goals.Get(ctx, alice, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.CheckInCount)
	assert.Equal(t, 20, view.Progress)
}

func TestCheckInPostsToFrequencyTribe(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")

	daily := h.goal(t, alice, models.FrequencyDaily)
	_, err := h.Goals.Complete(ctx, alice, daily.ID)
	require.NoError(t, err)
	weekly := h.goal(t, alice, models.FrequencyWeekly)

	res, err := h.CheckIns.Add(ctx, alice, weekly.ID, models.CheckInRequest{Content: "week one"})
	require.NoError(t, err)

	tribe, err := h.Tribes.GetOrCreateForFrequency(ctx, models.FrequencyWeekly)
	require.NoError(t, err)
	assert.Equal(t, tribe.ID, res.CheckIn.TribeID)
}

func TestCheckInWithoutMembershipRejoins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	g := h.goal(t, alice, models.FrequencyMonthly)

	tribes, err := h.Tribes.UserTribes(ctx, alice)
	require.NoError(t, err)
	require.Len(t, tribes, 1)
	require.NoError(t, h.Tribes.RemoveUserFromTribe(ctx, alice, alice.UserID, tribes[0].ID))

	res, err := h.CheckIns.Add(ctx, alice, g.ID, models.CheckInRequest{Content: "still going"})
	require.NoError(t, err)
	assert.Equal(t, tribes[0].ID, res.CheckIn.TribeID)

	member, err := h.Tribes.IsMember(ctx, alice.UserID, tribes[0].ID)
	require.NoError(t, err)
	assert.True(t, member)
}

func TestDeleteCheckInKeepsGoalCounters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")
	g := h.goal(t, alice, models.FrequencyDaily)
	h.goal(t, bob, models.FrequencyDaily)

	res, err := h.CheckIns.Add(ctx, alice, g.ID, models.CheckInRequest{Content: "day one"})
	require.NoError(t, err)
	_, err = h.Reactions.Toggle(ctx, bob, res.CheckIn.ID, models.ReactionClap)
	require.NoError(t, err)

	assert.ErrorIs(t, h.CheckIns.Delete(ctx, bob, res.CheckIn.ID), ErrAuthorization)
	require.NoError(t, h.CheckIns.Delete(ctx, alice, res.CheckIn.ID))

	view, err := h.Goals.Get(ctx, alice, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.CheckInCount)
	assert.Equal(t, 10, view.Progress)

	var reactions int64
	h.db.Model(&models.Reaction{}).Where("check_in_id = ?", res.CheckIn.ID).Count(&reactions)
	assert.Zero(t, reactions)

	var m models.AdminMetrics
	require.NoError(t, h.db.Where("id = ?", models.AdminMetricsID).First(&m).Error)
	assert.EqualValues(t, 1, m.DeletedCheckIns)

	assert.ErrorIs(t, h.CheckIns.Delete(ctx, alice, res.CheckIn.ID), ErrNotFound)
}

func TestAdminDeletesCheckIn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	root := h.admin(t, "root")
	g := h.goal(t, alice, models.FrequencyDaily)

	res, err := h.CheckIns.Add(ctx, alice, g.ID, models.CheckInRequest{Content: "spam"})
	require.NoError(t, err)
	require.NoError(t, h.CheckIns.Delete(ctx, root, res.CheckIn.ID))
}

func TestTribeFeed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")
	carol := h.user(t, "carol")
	ga := h.goal(t, alice, models.FrequencyDaily)
	h.goal(t, bob, models.FrequencyDaily)
	h.goal(t, carol, models.FrequencyWeekly)

	h.clock.Set(jan1.Add(time.Hour))
	first, err := h.CheckIns.Add(ctx, alice, ga.ID, models.CheckInRequest{Content: "first"})
	require.NoError(t, err)
	h.clock.Set(jan1.Add(2 * time.Hour))
	_, err = h.CheckIns.Add(ctx, alice, ga.ID, models.CheckInRequest{Content: "second"})
	require.NoError(t, err)

	tribeID := first.CheckIn.TribeID
	feed, err := h.CheckIns.Feed(ctx, bob, tribeID, 0)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, "second", feed[0].Content)
	assert.Equal(t, "alice", feed[1].Username)
	require.Len(t, feed[1].Reactions, 4)
	assert.Zero(t, feed[1].Reactions[0].Count)

	_, err = h.Reactions.Toggle(ctx, bob, first.CheckIn.ID, models.ReactionStar)
	require.NoError(t, err)

	feed, err = h.CheckIns.Feed(ctx, bob, tribeID, 0)
	require.NoError(t, err)
	star := feed[1].Reactions[0]
	assert.Equal(t, models.ReactionStar, star.Type)
	assert.Equal(t, 1, star.Count)
	assert.True(t, star.UserReacted)

	aliceView, err := h.CheckIns.Feed(ctx, alice, tribeID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, aliceView[1].Reactions[0].Count)
	assert.False(t, aliceView[1].Reactions[0].UserReacted)

	_, err = h.CheckIns.Feed(ctx, carol, tribeID, 0)
	assert.ErrorIs(t, err, ErrAuthorization)

	limited, err := h.CheckIns.Feed(ctx, bob, tribeID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestCheckInsForGoal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")
	g := h.goal(t, alice, models.FrequencyDaily)

	_, err := h.CheckIns.Add(ctx, alice, g.ID, models.CheckInRequest{Content: "one"})
	require.NoError(t, err)

	list, err := h.CheckIns.ForGoal(ctx, alice, g.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = h.CheckIns.ForGoal(ctx, bob, g.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
