package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CheckIn struct {
	ID          uuid.UUID `json:"id" gorm:"column:check_in_id;type:uuid;primaryKey"`
	UserID      uuid.UUID `json:"userId" gorm:"type:uuid;index;not null"`
	GoalID      uuid.UUID `json:"goalId" gorm:"type:uuid;index;not null"`
	TribeID     uuid.UUID `json:"tribeId" gorm:"type:uuid;index;not null"`
	CheckInTime time.Time `json:"checkInTime" gorm:"index;not null"`
	Content     string    `json:"content"`
	PhotoURL    *string   `json:"photoUrl"`
	MediaURL    *string   `json:"mediaUrl"`

	User *User `json:"-" gorm:"foreignKey:UserID"`
}

func (ci *CheckIn) BeforeCreate(tx *gorm.DB) error {
	if ci.ID == uuid.Nil {
		ci.ID = uuid.New()
	}
	return nil
}

type CheckInRequest struct {
	Content string  `json:"content" validate:"max=500"`
	Photo   *string `json:"photo"`
}

// CheckInResult is the stored check-in plus the goal counters it advanced.
type CheckInResult struct {
	CheckIn CheckIn  `json:"checkIn"`
	Goal    GoalView `json:"goal"`
}

// FeedItem is a check-in as shown in a tribe feed.
type FeedItem struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"userId"`
	Username  string            `json:"username"`
	CreatedAt time.Time         `json:"createdAt"`
	Content   string            `json:"content"`
	Photo     *string           `json:"photo,omitempty"`
	Reactions []ReactionSummary `json:"reactions"`
}
