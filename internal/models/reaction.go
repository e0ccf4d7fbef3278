package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReactionType string

const (
	ReactionStar  ReactionType = "star"
	ReactionHeart ReactionType = "heart"
	ReactionClap  ReactionType = "clap"
	ReactionFire  ReactionType = "fire"
)

// ReactionTypes lists every reaction in display order.
var ReactionTypes = []ReactionType{ReactionStar, ReactionHeart, ReactionClap, ReactionFire}

func (t ReactionType) Valid() bool {
	for _, rt := range ReactionTypes {
		if t == rt {
			return true
		}
	}
	return false
}

type Reaction struct {
	ID        uuid.UUID    `json:"id" gorm:"column:reaction_id;type:uuid;primaryKey"`
	CheckInID uuid.UUID    `json:"checkInId" gorm:"type:uuid;not null;uniqueIndex:idx_reaction_unique"`
	UserID    uuid.UUID    `json:"userId" gorm:"type:uuid;not null;uniqueIndex:idx_reaction_unique"`
	Type      ReactionType `json:"type" gorm:"column:reaction_type;not null;uniqueIndex:idx_reaction_unique"`
	CreatedAt time.Time    `json:"createdAt"`
}

func (r *Reaction) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

type CreateReactionRequest struct {
	Type ReactionType `json:"type" validate:"required"` // star, heart, clap, fire
}

type ReactionSummary struct {
	Type        ReactionType `json:"type"`
	Count       int          `json:"count"`
	UserReacted bool         `json:"userReacted"`
}

type ToggleReactionResponse struct {
	Type    ReactionType `json:"type"`
	Reacted bool         `json:"reacted"`
}
