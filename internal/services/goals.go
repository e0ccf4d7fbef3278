package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arnold/tribes-api/internal/cache"
	"github.com/arnold/tribes-api/internal/metrics"
	"github.com/arnold/tribes-api/internal/models"
)

// GoalService owns the goal lifecycle. Progress is a counter advanced only by
// check-ins; the elapsed-days figures in GoalView are informational.
type GoalService struct {
	*env
	tribes *TribeService
	admin  *AdminService
}

// maxDurationDays bounds TargetDate to years JSON timestamps can encode.
const maxDurationDays = 3650

func parseDuration(op, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, invalid(op, "duration", "must be a positive whole number of days")
	}
	if n > maxDurationDays {
		return 0, invalid(op, "duration", "must be at most %d days", maxDurationDays)
	}
	return n, nil
}

// Create stores a new active goal and assigns the owner to the tribe for its
// frequency in the same transaction. A user may hold one active goal.
func (s *GoalService) Create(ctx context.Context, actor Actor, form models.GoalForm) (*models.GoalView, error) {
	const op = "goals.create"
	if err := actor.check(op); err != nil {
		return nil, err
	}

	form.Title = plainText(form.Title)
	form.Description = plainText(form.Description)
	form.Motivator = plainText(form.Motivator)
	form.Celebration = plainText(form.Celebration)
	if form.CheckInType == "" {
		form.CheckInType = models.CheckInText
	}
	if err := validateStruct(op, form); err != nil {
		return nil, err
	}
	duration, err := parseDuration(op, form.Duration)
	if err != nil {
		return nil, err
	}

	now := s.now()
	goal := models.Goal{
		UserID:          actor.UserID,
		Title:           form.Title,
		Description:     form.Description,
		Motivator:       form.Motivator,
		CelebrationPlan: form.Celebration,
		Frequency:       form.Timeframe,
		CheckInType:     form.CheckInType,
		Duration:        duration,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var (
		tribe  *models.Tribe
		joined bool
	)
	err = s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var owner models.User
		if err := tx.Select("user_id").Where("user_id = ?", actor.UserID).First(&owner).Error; err != nil {
			return storeError(op, "user", err)
		}

		var active int64
		if err := tx.Model(&models.Goal{}).
			Where("user_id = ? AND is_active = ?", actor.UserID, true).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return conflict(op, "complete or delete the active goal before starting a new one")
		}

		if err := tx.Create(&goal).Error; err != nil {
			return err
		}

		var err error
		tribe, joined, err = s.tribes.assign(tx, op, actor.UserID, goal.Frequency)
		return err
	})
	if err != nil {
		return nil, storeError(op, "goal", err)
	}

	metrics.GoalsCreated.WithLabelValues(string(goal.Frequency)).Inc()
	if joined {
		s.tribes.memberJoined(ctx, tribe.ID, actor.UserID)
	}

	view := goal.View(now)
	return &view, nil
}

func (s *GoalService) owned(ctx context.Context, op string, actor Actor, goalID uuid.UUID) (*models.Goal, error) {
	if err := actor.check(op); err != nil {
		return nil, err
	}
	var goal models.Goal
	if err := s.conn(ctx).
		Where("goal_id = ? AND user_id = ?", goalID, actor.UserID).
		First(&goal).Error; err != nil {
		return nil, storeError(op, "goal", err)
	}
	return &goal, nil
}

// Get returns one of the actor's goals. Goals of other users are reported as
// not found.
func (s *GoalService) Get(ctx context.Context, actor Actor, goalID uuid.UUID) (*models.GoalView, error) {
	goal, err := s.owned(ctx, "goals.get", actor, goalID)
	if err != nil {
		return nil, err
	}
	view := goal.View(s.now())
	return &view, nil
}

func (s *GoalService) List(ctx context.Context, actor Actor) ([]models.GoalView, error) {
	const op = "goals.list"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	var goals []models.Goal
	if err := s.conn(ctx).
		Where("user_id = ?", actor.UserID).
		Order("created_at DESC").
		Find(&goals).Error; err != nil {
		return nil, storeError(op, "goal", err)
	}
	now := s.now()
	views := make([]models.GoalView, 0, len(goals))
	for i := range goals {
		views = append(views, goals[i].View(now))
	}
	return views, nil
}

// Active returns the actor's active goal or nil when there is none. Should
// the store ever hold several, the newest wins.
func (s *GoalService) Active(ctx context.Context, actor Actor) (*models.GoalView, error) {
	const op = "goals.active"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	var goal models.Goal
	err := s.conn(ctx).
		Where("user_id = ? AND is_active = ?", actor.UserID, true).
		Order("created_at DESC").
		First(&goal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(op, "goal", err)
	}
	view := goal.View(s.now())
	return &view, nil
}

// Update edits the descriptive fields only. Counters are never written here
// so a concurrent check-in cannot be overwritten.
func (s *GoalService) Update(ctx context.Context, actor Actor, goalID uuid.UUID, req models.UpdateGoalRequest) (*models.GoalView, error) {
	const op = "goals.update"
	for _, f := range []*string{req.Title, req.Description, req.Motivator, req.Celebration} {
		if f != nil {
			*f = plainText(*f)
		}
	}
	if err := validateStruct(op, req); err != nil {
		return nil, err
	}
	goal, err := s.owned(ctx, op, actor, goalID)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if req.Title != nil {
		changes["title"] = *req.Title
	}
	if req.Description != nil {
		changes["description"] = *req.Description
	}
	if req.Motivator != nil {
		changes["motivator"] = *req.Motivator
	}
	if req.Celebration != nil {
		changes["celebration_plan"] = *req.Celebration
	}
	if len(changes) > 0 {
		changes["updated_at"] = s.now()
		if err := s.conn(ctx).Model(&models.Goal{}).Where("goal_id = ?", goal.ID).Updates(changes).Error; err != nil {
			return nil, storeError(op, "goal", err)
		}
	}
	return s.Get(ctx, actor, goalID)
}

// Complete marks the goal inactive with full progress. Completing a finished
// goal changes nothing.
func (s *GoalService) Complete(ctx context.Context, actor Actor, goalID uuid.UUID) (*models.GoalView, error) {
	const op = "goals.complete"
	goal, err := s.owned(ctx, op, actor, goalID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if goal.IsActive || goal.Progress != 100 || goal.CompletedAt == nil {
		completedAt := now
		if goal.CompletedAt != nil {
			completedAt = *goal.CompletedAt
		}
		if err := s.conn(ctx).Model(&models.Goal{}).Where("goal_id = ?", goal.ID).Updates(map[string]any{
			"is_active":    false,
			"progress":     100,
			"completed_at": completedAt,
			"updated_at":   now,
		}).Error; err != nil {
			return nil, storeError(op, "goal", err)
		}
		if goal.IsActive {
			metrics.GoalsCompleted.Inc()
		}
		goal.IsActive = false
		goal.Progress = 100
		goal.CompletedAt = &completedAt
		goal.UpdatedAt = now
	}
	view := goal.View(now)
	return &view, nil
}

// Delete removes the goal's check-ins (and their reactions) before the goal
// itself, then counts the deletion. Owners and admins may delete.
func (s *GoalService) Delete(ctx context.Context, actor Actor, goalID uuid.UUID) error {
	const op = "goals.delete"
	if err := actor.check(op); err != nil {
		return err
	}

	var goal models.Goal
	if err := s.conn(ctx).Where("goal_id = ?", goalID).First(&goal).Error; err != nil {
		return storeError(op, "goal", err)
	}
	if goal.UserID != actor.UserID {
		if err := s.admin.requireAdmin(ctx, op, actor); err != nil {
			if errors.Is(err, ErrAuthorization) {
				return notFound(op, "goal")
			}
			return err
		}
	}

	var tribeIDs []uuid.UUID
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.CheckIn{}).Where("goal_id = ?", goal.ID).Distinct().Pluck("tribe_id", &tribeIDs).Error; err != nil {
			return err
		}
		goalCheckIns := tx.Model(&models.CheckIn{}).Select("check_in_id").Where("goal_id = ?", goal.ID)
		if err := tx.Where("check_in_id IN (?)", goalCheckIns).Delete(&models.Reaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("goal_id = ?", goal.ID).Delete(&models.CheckIn{}).Error; err != nil {
			return err
		}
		res := tx.Where("goal_id = ?", goal.ID).Delete(&models.Goal{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return bumpMetric(tx, deletedGoals, s.now())
	})
	if err != nil {
		return storeError(op, "goal", err)
	}

	metrics.Deletions.WithLabelValues("goal").Inc()
	s.invalidateTribes(ctx, tribeIDs...)
	for _, id := range tribeIDs {
		s.events.Publish(Event{
			Type:       EventCheckInDeleted,
			TribeID:    id,
			UserID:     actor.UserID,
			Invalidate: []string{cache.FeedTag(id), cache.GoalKey(goal.ID)},
		})
	}
	return nil
}

// HasCompleted reports whether the actor has finished at least one goal.
func (s *GoalService) HasCompleted(ctx context.Context, actor Actor) (bool, error) {
	const op = "goals.has_completed"
	if err := actor.check(op); err != nil {
		return false, err
	}
	var n int64
	if err := s.conn(ctx).Model(&models.Goal{}).
		Where("user_id = ? AND completed_at IS NOT NULL", actor.UserID).
		Count(&n).Error; err != nil {
		return false, storeError(op, "goal", err)
	}
	return n > 0, nil
}
