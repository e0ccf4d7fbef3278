package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arnold/tribes-api/internal/cache"
	"github.com/arnold/tribes-api/internal/metrics"
	"github.com/arnold/tribes-api/internal/models"
)

type ReactionService struct {
	*env
	tribes *TribeService
}

var reactionLabels = map[models.ReactionType]string{
	models.ReactionStar:  "a star",
	models.ReactionHeart: "a heart",
	models.ReactionClap:  "applause",
	models.ReactionFire:  "fire",
}

// Toggle adds the reaction if the actor has not left it yet and removes it
// otherwise. It reports the resulting state.
func (s *ReactionService) Toggle(ctx context.Context, actor Actor, checkInID uuid.UUID, t models.ReactionType) (*models.ToggleReactionResponse, error) {
	const op = "reactions.toggle"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	if !t.Valid() {
		return nil, invalid(op, "type", "must be one of: star heart clap fire")
	}

	var checkIn models.CheckIn
	if err := s.conn(ctx).Where("check_in_id = ?", checkInID).First(&checkIn).Error; err != nil {
		return nil, storeError(op, "check-in", err)
	}
	if err := s.tribes.requireAccess(ctx, op, actor, checkIn.TribeID); err != nil {
		return nil, err
	}

	var reacted bool
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Reaction
		err := tx.Where("check_in_id = ? AND user_id = ? AND reaction_type = ?", checkIn.ID, actor.UserID, t).
			First(&existing).Error
		switch {
		case err == nil:
			reacted = false
			return tx.Where("reaction_id = ?", existing.ID).Delete(&models.Reaction{}).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			reacted = true
			return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Reaction{
				CheckInID: checkIn.ID,
				UserID:    actor.UserID,
				Type:      t,
				CreatedAt: s.now(),
			}).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, storeError(op, "reaction", err)
	}

	action := "removed"
	if reacted {
		action = "added"
	}
	metrics.Reactions.WithLabelValues(string(t), action).Inc()

	s.invalidateTribes(ctx, checkIn.TribeID)
	resp := models.ToggleReactionResponse{Type: t, Reacted: reacted}
	s.events.Publish(Event{
		Type:       EventReactionToggled,
		TribeID:    checkIn.TribeID,
		UserID:     actor.UserID,
		Invalidate: []string{cache.FeedTag(checkIn.TribeID)},
		Data:       map[string]any{"checkInId": checkIn.ID, "type": t, "reacted": reacted},
	})

	if reacted && checkIn.UserID != actor.UserID {
		go s.push.NotifyUser(context.WithoutCancel(ctx), checkIn.UserID,
			"New reaction",
			"Someone in your tribe reacted with "+reactionLabels[t]+" to your check-in",
			map[string]string{
				"type":      "reaction",
				"checkInId": checkIn.ID.String(),
				"tribeId":   checkIn.TribeID.String(),
			})
	}
	return &resp, nil
}

// Summary returns one entry per reaction type for a check-in.
func (s *ReactionService) Summary(ctx context.Context, actor Actor, checkInID uuid.UUID) ([]models.ReactionSummary, error) {
	const op = "reactions.summary"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	var checkIn models.CheckIn
	if err := s.conn(ctx).Select("check_in_id", "tribe_id").Where("check_in_id = ?", checkInID).First(&checkIn).Error; err != nil {
		return nil, storeError(op, "check-in", err)
	}
	if err := s.tribes.requireAccess(ctx, op, actor, checkIn.TribeID); err != nil {
		return nil, err
	}
	byCheckIn, err := s.summaries(s.conn(ctx), []uuid.UUID{checkIn.ID}, actor.UserID)
	if err != nil {
		return nil, storeError(op, "reaction", err)
	}
	return byCheckIn[checkIn.ID], nil
}

// summaries counts reactions per type for each check-in. Every check-in gets
// all four types, zero counts included.
func (s *ReactionService) summaries(db *gorm.DB, checkInIDs []uuid.UUID, viewer uuid.UUID) (map[uuid.UUID][]models.ReactionSummary, error) {
	out := make(map[uuid.UUID][]models.ReactionSummary, len(checkInIDs))
	if len(checkInIDs) == 0 {
		return out, nil
	}

	var reactions []models.Reaction
	if err := db.Where("check_in_id IN ?", checkInIDs).Find(&reactions).Error; err != nil {
		return nil, err
	}

	type key struct {
		checkIn uuid.UUID
		t       models.ReactionType
	}
	counts := make(map[key]int)
	mine := make(map[key]bool)
	for _, r := range reactions {
		k := key{r.CheckInID, r.Type}
		counts[k]++
		if r.UserID == viewer {
			mine[k] = true
		}
	}

	for _, id := range checkInIDs {
		list := make([]models.ReactionSummary, 0, len(models.ReactionTypes))
		for _, t := range models.ReactionTypes {
			k := key{id, t}
			list = append(list, models.ReactionSummary{Type: t, Count: counts[k], UserReacted: mine[k]})
		}
		out[id] = list
	}
	return out, nil
}
