package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arnold/tribes-api/internal/cache"
	"github.com/arnold/tribes-api/internal/metrics"
	"github.com/arnold/tribes-api/internal/models"
)

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 100
)

type CheckInService struct {
	*env
	tribes    *TribeService
	reactions *ReactionService
	admin     *AdminService
}

// Add records a check-in on the actor's active goal. The count and progress
// are advanced by one UPDATE with column expressions so concurrent check-ins
// each apply their step.
func (s *CheckInService) Add(ctx context.Context, actor Actor, goalID uuid.UUID, req models.CheckInRequest) (*models.CheckInResult, error) {
	const op = "checkins.add"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	req.Content = plainText(req.Content)
	if req.Photo != nil {
		photo := strings.TrimSpace(*req.Photo)
		req.Photo = nil
		if photo != "" {
			req.Photo = &photo
		}
	}
	if err := validateStruct(op, req); err != nil {
		return nil, err
	}

	now := s.now()
	step := s.progressStep
	var (
		result models.CheckInResult
		joined bool
	)
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var goal models.Goal
		if err := tx.Where("goal_id = ? AND user_id = ? AND is_active = ?", goalID, actor.UserID, true).
			First(&goal).Error; err != nil {
			return storeError(op, "active goal", err)
		}
		if goal.CheckInType.NeedsContent() && req.Content == "" {
			return invalid(op, "content", "is required for %s check-ins", goal.CheckInType)
		}
		if goal.CheckInType.NeedsPhoto() && req.Photo == nil {
			return invalid(op, "photo", "is required for %s check-ins", goal.CheckInType)
		}

		tribeID, newMember, err := s.tribes.tribeForCheckIn(tx, op, actor.UserID, goal.Frequency)
		if err != nil {
			return err
		}
		joined = newMember

		checkIn := models.CheckIn{
			UserID:      actor.UserID,
			GoalID:      goal.ID,
			TribeID:     tribeID,
			CheckInTime: now,
			Content:     req.Content,
			PhotoURL:    req.Photo,
		}
		if err := tx.Create(&checkIn).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Goal{}).
			Where("goal_id = ? AND is_active = ?", goal.ID, true).
			Updates(map[string]any{
				"check_in_count": gorm.Expr("check_in_count + 1"),
				"progress":       gorm.Expr("CASE WHEN progress + ? >= 100 THEN 100 ELSE progress + ? END", step, step),
				"last_check_in":  now,
				"updated_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound(op, "active goal")
		}

		var updated models.Goal
		if err := tx.Where("goal_id = ?", goal.ID).First(&updated).Error; err != nil {
			return err
		}
		result = models.CheckInResult{CheckIn: checkIn, Goal: updated.View(now)}
		return nil
	})
	if err != nil {
		return nil, storeError(op, "check-in", err)
	}

	tribeID := result.CheckIn.TribeID
	metrics.CheckIns.WithLabelValues(string(result.Goal.CheckInType)).Inc()
	if joined {
		s.tribes.memberJoined(ctx, tribeID, actor.UserID)
	}
	s.invalidateTribes(ctx, tribeID)
	s.events.Publish(Event{
		Type:       EventCheckInAdded,
		TribeID:    tribeID,
		UserID:     actor.UserID,
		Invalidate: []string{cache.FeedTag(tribeID), cache.MembersKey(tribeID), cache.GoalKey(goalID)},
		Data:       map[string]any{"checkInId": result.CheckIn.ID},
	})
	return &result, nil
}

// Delete removes a check-in and its reactions and counts the deletion. The
// goal's count and progress keep the check-in's contribution.
func (s *CheckInService) Delete(ctx context.Context, actor Actor, checkInID uuid.UUID) error {
	const op = "checkins.delete"
	if err := actor.check(op); err != nil {
		return err
	}

	var checkIn models.CheckIn
	if err := s.conn(ctx).Where("check_in_id = ?", checkInID).First(&checkIn).Error; err != nil {
		return storeError(op, "check-in", err)
	}
	if checkIn.UserID != actor.UserID {
		if err := s.admin.requireAdmin(ctx, op, actor); err != nil {
			return err
		}
	}

	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("check_in_id = ?", checkIn.ID).Delete(&models.Reaction{}).Error; err != nil {
			return err
		}
		res := tx.Where("check_in_id = ?", checkIn.ID).Delete(&models.CheckIn{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return bumpMetric(tx, deletedCheckIns, s.now())
	})
	if err != nil {
		return storeError(op, "check-in", err)
	}

	metrics.Deletions.WithLabelValues("check_in").Inc()
	s.invalidateTribes(ctx, checkIn.TribeID)
	s.events.Publish(Event{
		Type:       EventCheckInDeleted,
		TribeID:    checkIn.TribeID,
		UserID:     actor.UserID,
		Invalidate: []string{cache.FeedTag(checkIn.TribeID), cache.MembersKey(checkIn.TribeID)},
		Data:       map[string]any{"checkInId": checkIn.ID},
	})
	return nil
}

// Feed returns the newest check-ins of a tribe with reaction summaries from
// the actor's point of view.
func (s *CheckInService) Feed(ctx context.Context, actor Actor, tribeID uuid.UUID, limit int) ([]models.FeedItem, error) {
	const op = "checkins.feed"
	if err := s.tribes.requireAccess(ctx, op, actor, tribeID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}

	key := cache.FeedKey(tribeID, actor.UserID, limit)
	var items []models.FeedItem
	if s.cached(ctx, key, &items) {
		return items, nil
	}

	var checkIns []models.CheckIn
	if err := s.conn(ctx).Preload("User").
		Where("tribe_id = ?", tribeID).
		Order("check_in_time DESC").
		Limit(limit).
		Find(&checkIns).Error; err != nil {
		return nil, storeError(op, "check-in", err)
	}

	ids := make([]uuid.UUID, 0, len(checkIns))
	for _, ci := range checkIns {
		ids = append(ids, ci.ID)
	}
	summaries, err := s.reactions.summaries(s.conn(ctx), ids, actor.UserID)
	if err != nil {
		return nil, storeError(op, "reaction", err)
	}

	items = make([]models.FeedItem, 0, len(checkIns))
	for _, ci := range checkIns {
		item := models.FeedItem{
			ID:        ci.ID,
			UserID:    ci.UserID,
			CreatedAt: ci.CheckInTime,
			Content:   ci.Content,
			Photo:     ci.PhotoURL,
			Reactions: summaries[ci.ID],
		}
		if ci.User != nil {
			item.Username = ci.User.Username
		}
		items = append(items, item)
	}

	s.store(ctx, key, items)
	return items, nil
}

// ForGoal lists the check-ins of one of the actor's goals, newest first.
func (s *CheckInService) ForGoal(ctx context.Context, actor Actor, goalID uuid.UUID) ([]models.CheckIn, error) {
	const op = "checkins.for_goal"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	var goal models.Goal
	err := s.conn(ctx).Select("goal_id").Where("goal_id = ? AND user_id = ?", goalID, actor.UserID).First(&goal).Error
	if err != nil {
		return nil, storeError(op, "goal", err)
	}

	checkIns := []models.CheckIn{}
	if err := s.conn(ctx).Where("goal_id = ?", goalID).Order("check_in_time DESC").Find(&checkIns).Error; err != nil {
		return nil, storeError(op, "check-in", err)
	}
	return checkIns, nil
}
