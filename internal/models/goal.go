package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

type CheckInType string

const (
	CheckInText  CheckInType = "text"
	CheckInPhoto CheckInType = "photo"
	CheckInBoth  CheckInType = "both"
)

// NeedsContent reports whether a check-in of this type must carry text.
func (t CheckInType) NeedsContent() bool {
	return t == CheckInText || t == CheckInBoth
}

// NeedsPhoto reports whether a check-in of this type must carry a photo.
func (t CheckInType) NeedsPhoto() bool {
	return t == CheckInPhoto || t == CheckInBoth
}

type Goal struct {
	ID              uuid.UUID   `json:"id" gorm:"column:goal_id;type:uuid;primaryKey"`
	UserID          uuid.UUID   `json:"userId" gorm:"type:uuid;index;not null"`
	Title           string      `json:"title" gorm:"not null"`
	Description     string      `json:"description" gorm:"not null"`
	Motivator       string      `json:"motivator"`
	CelebrationPlan string      `json:"celebrationPlan"`
	Frequency       Frequency   `json:"frequency" gorm:"not null;index"`
	CheckInType     CheckInType `json:"checkInType" gorm:"not null"`
	Duration        int         `json:"duration"`
	Progress        int         `json:"progress" gorm:"not null;default:0"`
	IsActive        bool        `json:"isActive" gorm:"index;not null"`
	CheckInCount    int         `json:"checkInCount" gorm:"not null;default:0"`
	LastCheckIn     *time.Time  `json:"lastCheckIn"`
	CompletedAt     *time.Time  `json:"completedAt"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

func (g *Goal) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// GoalForm mirrors the goal creation form. Duration arrives as text and is
// parsed by the goal service.
type GoalForm struct {
	Title       string      `json:"title" validate:"required,min=3,max=100"`
	Description string      `json:"description" validate:"required,min=10,max=500"`
	Motivator   string      `json:"motivator" validate:"required,min=3,max=200"`
	Timeframe   Frequency   `json:"timeframe" validate:"required,oneof=daily weekly monthly"`
	Celebration string      `json:"celebration" validate:"required,min=3,max=200"`
	CheckInType CheckInType `json:"checkInType" validate:"omitempty,oneof=text"`
	Duration    string      `json:"duration" validate:"required"`
}

type UpdateGoalRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=3,max=100"`
	Description *string `json:"description" validate:"omitempty,min=10,max=500"`
	Motivator   *string `json:"motivator" validate:"omitempty,min=3,max=200"`
	Celebration *string `json:"celebration" validate:"omitempty,min=3,max=200"`
}

// GoalView is a goal together with its display-only schedule figures.
type GoalView struct {
	Goal
	StartDate           time.Time  `json:"startDate"`
	TargetDate          time.Time  `json:"targetDate"`
	DaysSinceStart      int        `json:"daysSinceStart"`
	DaysUntilCompletion int        `json:"daysUntilCompletion"`
	ElapsedPercent      int        `json:"elapsedPercent"`
	NextCheckIn         *time.Time `json:"nextCheckIn"`
	CheckInDue          bool       `json:"checkInDue"`
}
