package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tribe groups every user whose goals share a check-in frequency. The unique
// index keeps one tribe per frequency.
type Tribe struct {
	ID        uuid.UUID `json:"id" gorm:"column:tribe_id;type:uuid;primaryKey"`
	Frequency Frequency `json:"frequency" gorm:"not null;uniqueIndex"`
	CreatedAt time.Time `json:"createdAt"`
}

func (t *Tribe) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

type UserTribe struct {
	UserID   uuid.UUID `json:"userId" gorm:"type:uuid;primaryKey"`
	TribeID  uuid.UUID `json:"tribeId" gorm:"type:uuid;primaryKey;index"`
	JoinedAt time.Time `json:"joinedAt" gorm:"not null"`

	User  *User  `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Tribe *Tribe `json:"tribe,omitempty" gorm:"foreignKey:TribeID"`
}

func (ut *UserTribe) BeforeCreate(tx *gorm.DB) error {
	if ut.JoinedAt.IsZero() {
		ut.JoinedAt = time.Now()
	}
	return nil
}

type TribeMember struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Avatar       string     `json:"avatar,omitempty"`
	JoinedAt     time.Time  `json:"joinedAt"`
	CheckInCount int        `json:"checkInCount"`
	LastActive   *time.Time `json:"lastActive"`
}

type TribeSummary struct {
	Tribe
	MemberCount int64 `json:"memberCount"`
}

type MoveUserRequest struct {
	TribeID uuid.UUID `json:"tribeId" validate:"required"`
}
