package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID             uuid.UUID      `json:"id" gorm:"column:user_id;type:uuid;primaryKey"`
	Username       string         `json:"username" gorm:"not null"`
	Email          string         `json:"email" gorm:"uniqueIndex;not null"`
	Password       string         `json:"-"`
	IsAdmin        bool           `json:"isAdmin" gorm:"not null;default:false"`
	ProfileDetails map[string]any `json:"profileDetails,omitempty" gorm:"serializer:json"`
	FCMToken       string         `json:"-" gorm:"column:fcm_token"`
	LastLoginAt    *time.Time     `json:"lastLoginAt"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Avatar returns the avatar URL stored in the profile details, if any.
func (u *User) Avatar() string {
	if u.ProfileDetails == nil {
		return ""
	}
	s, _ := u.ProfileDetails["avatar"].(string)
	return s
}

// Auth DTOs
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=2,max=50"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	Username       *string        `json:"username" validate:"omitempty,min=2,max=50"`
	Email          *string        `json:"email" validate:"omitempty,email"`
	ProfileDetails map[string]any `json:"profileDetails"`
}

type DeviceTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
