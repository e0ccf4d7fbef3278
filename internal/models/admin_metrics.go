package models

import (
	"time"

	"github.com/google/uuid"
)

// AdminMetricsID is the primary key of the single counters row.
const AdminMetricsID = 1

type AdminMetrics struct {
	ID              uint      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	DeletedGoals    int64     `json:"deletedGoals" gorm:"not null;default:0"`
	DeletedCheckIns int64     `json:"deletedCheckIns" gorm:"not null;default:0"`
	DeletedUsers    int64     `json:"deletedUsers" gorm:"not null;default:0"`
	LastUpdated     time.Time `json:"lastUpdated"`
}

func (AdminMetrics) TableName() string {
	return "admin_metrics"
}

type RecentActivity struct {
	CheckInID       uuid.UUID `json:"checkInId"`
	CheckInTime     time.Time `json:"date"`
	Content         string    `json:"content"`
	Username        string    `json:"username"`
	GoalDescription string    `json:"goalDescription"`
}

type AdminStats struct {
	TotalUsers           int64               `json:"totalUsers"`
	ActiveUsers          int64               `json:"activeUsers"`
	ActiveUsersEstimated bool                `json:"activeUsersEstimated"`
	TotalTribes          int64               `json:"totalTribes"`
	TotalCheckIns        int64               `json:"totalCheckIns"`
	GoalsByFrequency     map[Frequency]int64 `json:"goalsByFrequency"`
	RecentActivity       []RecentActivity    `json:"recentActivity"`
}

type UserSummary struct {
	User
	TribeIDs []uuid.UUID `json:"tribeIds"`
}
