package services

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arnold/tribes-api/internal/cache"
	"github.com/arnold/tribes-api/internal/logging"
	"github.com/arnold/tribes-api/internal/metrics"
	"github.com/arnold/tribes-api/internal/models"
)

const recentActivityLimit = 5

type metricColumn string

const (
	deletedGoals    metricColumn = "deleted_goals"
	deletedCheckIns metricColumn = "deleted_check_ins"
	deletedUsers    metricColumn = "deleted_users"
)

type AdminService struct {
	*env
}

// IsAdmin reads the admin flag of a user. Unknown users are not admins.
func (s *AdminService) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	var user models.User
	err := s.conn(ctx).Select("user_id", "is_admin").Where("user_id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeError("admin.is_admin", "user", err)
	}
	return user.IsAdmin, nil
}

func (s *AdminService) requireAdmin(ctx context.Context, op string, actor Actor) error {
	if err := actor.check(op); err != nil {
		return err
	}
	ok, err := s.IsAdmin(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return forbidden(op, "admin privileges required")
	}
	return nil
}

// Metrics returns the deletion counters, creating the row on first access.
func (s *AdminService) Metrics(ctx context.Context, actor Actor) (*models.AdminMetrics, error) {
	const op = "admin.metrics"
	if err := s.requireAdmin(ctx, op, actor); err != nil {
		return nil, err
	}
	var m models.AdminMetrics
	if err := s.conn(ctx).
		Where("id = ?", models.AdminMetricsID).
		Attrs(models.AdminMetrics{ID: models.AdminMetricsID, LastUpdated: s.now()}).
		FirstOrCreate(&m).Error; err != nil {
		return nil, storeError(op, "admin metrics", err)
	}
	return &m, nil
}

// bumpMetric increments one counter in the singleton row. It must run in the
// same transaction as the delete it counts.
func bumpMetric(tx *gorm.DB, col metricColumn, now time.Time) error {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.AdminMetrics{ID: models.AdminMetricsID, LastUpdated: now}).Error; err != nil {
		return err
	}
	return tx.Model(&models.AdminMetrics{}).
		Where("id = ?", models.AdminMetricsID).
		Updates(map[string]any{
			string(col):    gorm.Expr(string(col) + " + 1"),
			"last_updated": now,
		}).Error
}

// Stats gathers the dashboard figures. A failed active-user count is replaced
// by an estimate of 80% of all users.
func (s *AdminService) Stats(ctx context.Context, actor Actor) (*models.AdminStats, error) {
	const op = "admin.stats"
	if err := s.requireAdmin(ctx, op, actor); err != nil {
		return nil, err
	}

	stats := models.AdminStats{GoalsByFrequency: map[models.Frequency]int64{}}
	db := s.conn(ctx)

	if err := db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, storeError(op, "user", err)
	}

	since := s.now().Add(-s.activeWindow)
	if err := db.Model(&models.User{}).Where("last_login_at >= ?", since).Count(&stats.ActiveUsers).Error; err != nil {
		logging.Logger.Warn("active user count failed, using estimate", zap.Error(err))
		stats.ActiveUsers = stats.TotalUsers * 8 / 10
		stats.ActiveUsersEstimated = true
	}

	if err := db.Model(&models.Tribe{}).Count(&stats.TotalTribes).Error; err != nil {
		return nil, storeError(op, "tribe", err)
	}
	if err := db.Model(&models.CheckIn{}).Count(&stats.TotalCheckIns).Error; err != nil {
		return nil, storeError(op, "check-in", err)
	}

	var byFreq []struct {
		Frequency models.Frequency
		N         int64
	}
	if err := db.Model(&models.Goal{}).Select("frequency, COUNT(*) AS n").Group("frequency").Scan(&byFreq).Error; err != nil {
		return nil, storeError(op, "goal", err)
	}
	for _, f := range byFreq {
		stats.GoalsByFrequency[f.Frequency] = f.N
	}

	recent, err := s.recentActivity(ctx)
	if err != nil {
		return nil, storeError(op, "check-in", err)
	}
	stats.RecentActivity = recent
	return &stats, nil
}

func (s *AdminService) recentActivity(ctx context.Context) ([]models.RecentActivity, error) {
	query, args, err := sq.Select(
		"c.check_in_id",
		"c.check_in_time",
		"c.content",
		"COALESCE(u.username, '') AS username",
		"COALESCE(g.description, '') AS goal_description",
	).
		From("check_ins c").
		LeftJoin("users u ON u.user_id = c.user_id").
		LeftJoin("goals g ON g.goal_id = c.goal_id").
		OrderBy("c.check_in_time DESC").
		Limit(recentActivityLimit).
		ToSql()
	if err != nil {
		return nil, err
	}

	out := []models.RecentActivity{}
	if err := s.conn(ctx).Raw(query, args...).Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListUsers returns every user with the ids of the tribes they belong to.
func (s *AdminService) ListUsers(ctx context.Context, actor Actor) ([]models.UserSummary, error) {
	const op = "admin.list_users"
	if err := s.requireAdmin(ctx, op, actor); err != nil {
		return nil, err
	}

	var users []models.User
	if err := s.conn(ctx).Order("created_at").Find(&users).Error; err != nil {
		return nil, storeError(op, "user", err)
	}
	var memberships []models.UserTribe
	if err := s.conn(ctx).Order("joined_at").Find(&memberships).Error; err != nil {
		return nil, storeError(op, "membership", err)
	}

	tribesByUser := make(map[uuid.UUID][]uuid.UUID)
	for _, m := range memberships {
		tribesByUser[m.UserID] = append(tribesByUser[m.UserID], m.TribeID)
	}

	out := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		ids := tribesByUser[u.ID]
		if ids == nil {
			ids = []uuid.UUID{}
		}
		out = append(out, models.UserSummary{User: u, TribeIDs: ids})
	}
	return out, nil
}

// DeleteUser removes the user's reactions, check-ins (with reactions left on
// them), goals, memberships and finally the user.
func (s *AdminService) DeleteUser(ctx context.Context, actor Actor, userID uuid.UUID) error {
	const op = "admin.delete_user"
	if err := s.requireAdmin(ctx, op, actor); err != nil {
		return err
	}
	if userID == actor.UserID {
		return forbidden(op, "admins cannot delete their own account")
	}

	var tribeIDs, reactedTribeIDs []uuid.UUID
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("user_id = ?", userID).First(&user).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.UserTribe{}).Where("user_id = ?", userID).Pluck("tribe_id", &tribeIDs).Error; err != nil {
			return err
		}
		// admins react outside their own tribes
		reacted := tx.Model(&models.Reaction{}).Select("check_in_id").Where("user_id = ?", userID)
		if err := tx.Model(&models.CheckIn{}).Where("check_in_id IN (?)", reacted).Distinct().Pluck("tribe_id", &reactedTribeIDs).Error; err != nil {
			return err
		}

		userCheckIns := tx.Model(&models.CheckIn{}).Select("check_in_id").Where("user_id = ?", userID)
		if err := tx.Where("user_id = ? OR check_in_id IN (?)", userID, userCheckIns).Delete(&models.Reaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.CheckIn{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Goal{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserTribe{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.User{}).Error; err != nil {
			return err
		}
		return bumpMetric(tx, deletedUsers, s.now())
	})
	if err != nil {
		return storeError(op, "user", err)
	}

	metrics.Deletions.WithLabelValues("user").Inc()
	logging.Logger.Info("user deleted", zap.String("user_id", userID.String()), zap.String("by", actor.UserID.String()))
	member := make(map[uuid.UUID]bool, len(tribeIDs))
	for _, id := range tribeIDs {
		member[id] = true
	}
	s.invalidateTribes(ctx, tribeIDs...)
	for _, id := range tribeIDs {
		s.events.Publish(Event{
			Type:       EventMemberLeft,
			TribeID:    id,
			UserID:     userID,
			Invalidate: []string{cache.MembersKey(id), cache.FeedTag(id)},
		})
	}
	for _, id := range reactedTribeIDs {
		if member[id] {
			continue
		}
		s.invalidateTribes(ctx, id)
		s.events.Publish(Event{
			Type:       EventReactionToggled,
			TribeID:    id,
			UserID:     userID,
			Invalidate: []string{cache.FeedTag(id)},
		})
	}
	return nil
}
