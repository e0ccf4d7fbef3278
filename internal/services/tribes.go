package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arnold/tribes-api/internal/cache"
	"github.com/arnold/tribes-api/internal/metrics"
	"github.com/arnold/tribes-api/internal/models"
)

// TribeService maps frequencies to tribes and manages memberships. A user may
// belong to several tribes; only MoveUser replaces memberships.
type TribeService struct {
	*env
	admin *AdminService
}

// GetOrCreateForFrequency returns the tribe for f, creating it on first use.
func (s *TribeService) GetOrCreateForFrequency(ctx context.Context, f models.Frequency) (*models.Tribe, error) {
	return s.getOrCreate(s.conn(ctx), "tribes.get_or_create", f)
}

// getOrCreate relies on the unique index over tribes.frequency: racing
// creators both insert with DO NOTHING and then read back the surviving row.
func (s *TribeService) getOrCreate(tx *gorm.DB, op string, f models.Frequency) (*models.Tribe, error) {
	if !f.Valid() {
		return nil, invalid(op, "frequency", "must be one of: daily weekly monthly")
	}

	existing, err := s.byFrequency(tx, f)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storeError(op, "tribe", err)
	}

	created := models.Tribe{Frequency: f, CreatedAt: s.now()}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "frequency"}},
		DoNothing: true,
	}).Create(&created).Error; err != nil {
		return nil, storeError(op, "tribe", err)
	}

	tribe, err := s.byFrequency(tx, f)
	if err != nil {
		return nil, storeError(op, "tribe", err)
	}
	if tribe.ID == created.ID {
		metrics.TribesCreated.WithLabelValues(string(f)).Inc()
	}
	return tribe, nil
}

func (s *TribeService) byFrequency(tx *gorm.DB, f models.Frequency) (*models.Tribe, error) {
	var tribe models.Tribe
	if err := tx.Where("frequency = ?", f).Order("created_at").First(&tribe).Error; err != nil {
		return nil, err
	}
	return &tribe, nil
}

// AssignUserToFrequencyTribe links the user to the tribe for f. Existing
// memberships, including ones in other tribes, are left alone.
func (s *TribeService) AssignUserToFrequencyTribe(ctx context.Context, actor Actor, f models.Frequency) (*models.Tribe, error) {
	const op = "tribes.assign"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	tribe, joined, err := s.assign(s.conn(ctx), op, actor.UserID, f)
	if err != nil {
		return nil, err
	}
	if joined {
		s.memberJoined(ctx, tribe.ID, actor.UserID)
	}
	return tribe, nil
}

// assign reports whether a new membership row was written.
func (s *TribeService) assign(tx *gorm.DB, op string, userID uuid.UUID, f models.Frequency) (*models.Tribe, bool, error) {
	tribe, err := s.getOrCreate(tx, op, f)
	if err != nil {
		return nil, false, err
	}
	member, err := s.isMember(tx, userID, tribe.ID)
	if err != nil {
		return nil, false, storeError(op, "membership", err)
	}
	if member {
		return tribe, false, nil
	}
	if err := s.join(tx, userID, tribe.ID); err != nil {
		return nil, false, storeError(op, "membership", err)
	}
	metrics.MembershipsCreated.Inc()
	return tribe, true, nil
}

func (s *TribeService) join(tx *gorm.DB, userID, tribeID uuid.UUID) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.UserTribe{
		UserID:   userID,
		TribeID:  tribeID,
		JoinedAt: s.now(),
	}).Error
}

func (s *TribeService) isMember(tx *gorm.DB, userID, tribeID uuid.UUID) (bool, error) {
	var n int64
	err := tx.Model(&models.UserTribe{}).
		Where("user_id = ? AND tribe_id = ?", userID, tribeID).
		Count(&n).Error
	return n > 0, err
}

func (s *TribeService) IsMember(ctx context.Context, userID, tribeID uuid.UUID) (bool, error) {
	ok, err := s.isMember(s.conn(ctx), userID, tribeID)
	if err != nil {
		return false, storeError("tribes.is_member", "membership", err)
	}
	return ok, nil
}

// RemoveUserFromTribe deletes one membership row. Goals and check-ins are
// untouched. Users may remove themselves; admins may remove anyone.
func (s *TribeService) RemoveUserFromTribe(ctx context.Context, actor Actor, userID, tribeID uuid.UUID) error {
	const op = "tribes.remove_member"
	if err := actor.check(op); err != nil {
		return err
	}
	if userID != actor.UserID {
		if err := s.admin.requireAdmin(ctx, op, actor); err != nil {
			return err
		}
	}

	res := s.conn(ctx).Where("user_id = ? AND tribe_id = ?", userID, tribeID).Delete(&models.UserTribe{})
	if res.Error != nil {
		return storeError(op, "membership", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(op, "membership")
	}

	s.invalidateTribes(ctx, tribeID)
	s.events.Publish(Event{
		Type:       EventMemberLeft,
		TribeID:    tribeID,
		UserID:     userID,
		Invalidate: []string{cache.MembersKey(tribeID)},
	})
	return nil
}

// ListMembers returns the members of a tribe with their check-in activity.
// Callers must belong to the tribe or be admins.
func (s *TribeService) ListMembers(ctx context.Context, actor Actor, tribeID uuid.UUID) ([]models.TribeMember, error) {
	const op = "tribes.members"
	if err := s.requireAccess(ctx, op, actor, tribeID); err != nil {
		return nil, err
	}

	key := cache.MembersKey(tribeID)
	var members []models.TribeMember
	if s.cached(ctx, key, &members) {
		return members, nil
	}

	var rows []models.UserTribe
	if err := s.conn(ctx).Preload("User").
		Where("tribe_id = ?", tribeID).
		Order("joined_at").
		Find(&rows).Error; err != nil {
		return nil, storeError(op, "membership", err)
	}

	var activity []struct {
		UserID      uuid.UUID
		CheckInTime time.Time
	}
	if err := s.conn(ctx).Model(&models.CheckIn{}).
		Select("user_id, check_in_time").
		Where("tribe_id = ?", tribeID).
		Scan(&activity).Error; err != nil {
		return nil, storeError(op, "check-in", err)
	}

	counts := make(map[uuid.UUID]int)
	last := make(map[uuid.UUID]time.Time)
	for _, a := range activity {
		counts[a.UserID]++
		if a.CheckInTime.After(last[a.UserID]) {
			last[a.UserID] = a.CheckInTime
		}
	}

	members = make([]models.TribeMember, 0, len(rows))
	for _, r := range rows {
		m := models.TribeMember{
			ID:           r.UserID,
			JoinedAt:     r.JoinedAt,
			CheckInCount: counts[r.UserID],
		}
		if r.User != nil {
			m.Username = r.User.Username
			m.Avatar = r.User.Avatar()
		}
		if t, ok := last[r.UserID]; ok {
			m.LastActive = &t
		}
		members = append(members, m)
	}

	s.store(ctx, key, members)
	return members, nil
}

// UserTribes lists the tribes the actor belongs to, oldest membership first.
func (s *TribeService) UserTribes(ctx context.Context, actor Actor) ([]models.Tribe, error) {
	const op = "tribes.mine"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	var tribes []models.Tribe
	if err := s.conn(ctx).
		Joins("JOIN user_tribes ON user_tribes.tribe_id = tribes.tribe_id").
		Where("user_tribes.user_id = ?", actor.UserID).
		Order("user_tribes.joined_at").
		Find(&tribes).Error; err != nil {
		return nil, storeError(op, "tribe", err)
	}
	return tribes, nil
}

func (s *TribeService) ListTribes(ctx context.Context) ([]models.TribeSummary, error) {
	const op = "tribes.list"
	var tribes []models.Tribe
	if err := s.conn(ctx).Order("created_at").Find(&tribes).Error; err != nil {
		return nil, storeError(op, "tribe", err)
	}

	var counts []struct {
		TribeID uuid.UUID
		N       int64
	}
	if err := s.conn(ctx).Model(&models.UserTribe{}).
		Select("tribe_id, COUNT(*) AS n").
		Group("tribe_id").
		Scan(&counts).Error; err != nil {
		return nil, storeError(op, "membership", err)
	}
	byTribe := make(map[uuid.UUID]int64, len(counts))
	for _, c := range counts {
		byTribe[c.TribeID] = c.N
	}

	out := make([]models.TribeSummary, 0, len(tribes))
	for _, t := range tribes {
		out = append(out, models.TribeSummary{Tribe: t, MemberCount: byTribe[t.ID]})
	}
	return out, nil
}

// DeleteTribe removes every membership and then the tribe. Admin only.
func (s *TribeService) DeleteTribe(ctx context.Context, actor Actor, tribeID uuid.UUID) error {
	const op = "tribes.delete"
	if err := s.admin.requireAdmin(ctx, op, actor); err != nil {
		return err
	}

	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tribe_id = ?", tribeID).Delete(&models.UserTribe{}).Error; err != nil {
			return err
		}
		res := tx.Where("tribe_id = ?", tribeID).Delete(&models.Tribe{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return storeError(op, "tribe", err)
	}

	metrics.Deletions.WithLabelValues("tribe").Inc()
	s.invalidateTribes(ctx, tribeID)
	s.events.Publish(Event{Type: EventTribeDeleted, TribeID: tribeID, UserID: actor.UserID})
	return nil
}

// MoveUser replaces all of a user's memberships with one in tribeID. Admin
// only.
func (s *TribeService) MoveUser(ctx context.Context, actor Actor, userID, tribeID uuid.UUID) error {
	const op = "tribes.move_user"
	if err := s.admin.requireAdmin(ctx, op, actor); err != nil {
		return err
	}

	var previous []uuid.UUID
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("user_id = ?", userID).First(&user).Error; err != nil {
			return storeError(op, "user", err)
		}
		var tribe models.Tribe
		if err := tx.Where("tribe_id = ?", tribeID).First(&tribe).Error; err != nil {
			return storeError(op, "tribe", err)
		}
		if err := tx.Model(&models.UserTribe{}).Where("user_id = ?", userID).Pluck("tribe_id", &previous).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserTribe{}).Error; err != nil {
			return err
		}
		return s.join(tx, userID, tribeID)
	})
	if err != nil {
		return storeError(op, "membership", err)
	}

	for _, id := range previous {
		if id == tribeID {
			continue
		}
		s.invalidateTribes(ctx, id)
		s.events.Publish(Event{Type: EventMemberLeft, TribeID: id, UserID: userID, Invalidate: []string{cache.MembersKey(id)}})
	}
	s.memberJoined(ctx, tribeID, userID)
	return nil
}

func (s *TribeService) memberJoined(ctx context.Context, tribeID, userID uuid.UUID) {
	s.invalidateTribes(ctx, tribeID)
	s.events.Publish(Event{
		Type:       EventMemberJoined,
		TribeID:    tribeID,
		UserID:     userID,
		Invalidate: []string{cache.MembersKey(tribeID)},
	})
}

// requireAccess admits tribe members and admins.
func (s *TribeService) requireAccess(ctx context.Context, op string, actor Actor, tribeID uuid.UUID) error {
	if err := actor.check(op); err != nil {
		return err
	}
	var tribe models.Tribe
	if err := s.conn(ctx).Where("tribe_id = ?", tribeID).First(&tribe).Error; err != nil {
		return storeError(op, "tribe", err)
	}
	member, err := s.isMember(s.conn(ctx), actor.UserID, tribeID)
	if err != nil {
		return storeError(op, "membership", err)
	}
	if member {
		return nil
	}
	if err := s.admin.requireAdmin(ctx, op, actor); err != nil {
		if errors.Is(err, ErrAuthorization) {
			return forbidden(op, "not a member of this tribe")
		}
		return err
	}
	return nil
}

// tribeForCheckIn picks the tribe a new check-in is posted to: the
// membership matching the goal's frequency, else the oldest membership, else
// a fresh assignment to the frequency tribe.
func (s *TribeService) tribeForCheckIn(tx *gorm.DB, op string, userID uuid.UUID, f models.Frequency) (uuid.UUID, bool, error) {
	var memberships []struct {
		TribeID   uuid.UUID
		Frequency models.Frequency
		JoinedAt  time.Time
	}
	if err := tx.Table("user_tribes").
		Select("user_tribes.tribe_id, tribes.frequency, user_tribes.joined_at").
		Joins("JOIN tribes ON tribes.tribe_id = user_tribes.tribe_id").
		Where("user_tribes.user_id = ?", userID).
		Scan(&memberships).Error; err != nil {
		return uuid.Nil, false, storeError(op, "membership", err)
	}
	if len(memberships) > 0 {
		sort.SliceStable(memberships, func(i, j int) bool {
			return memberships[i].JoinedAt.Before(memberships[j].JoinedAt)
		})
		for _, m := range memberships {
			if m.Frequency == f {
				return m.TribeID, false, nil
			}
		}
		return memberships[0].TribeID, false, nil
	}

	tribe, joined, err := s.assign(tx, op, userID, f)
	if err != nil {
		return uuid.Nil, false, err
	}
	return tribe.ID, joined, nil
}
