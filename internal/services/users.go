package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/arnold/tribes-api/internal/cache"
	"github.com/arnold/tribes-api/internal/logging"
	"github.com/arnold/tribes-api/internal/models"
)

type UserService struct {
	*env
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	const op = "users.register"
	req.Email = normalizeEmail(req.Email)
	req.Username = plainText(req.Username)
	if err := validateStruct(op, req); err != nil {
		return nil, err
	}

	var existing int64
	if err := s.conn(ctx).Model(&models.User{}).Where("email = ?", req.Email).Count(&existing).Error; err != nil {
		return nil, storeError(op, "user", err)
	}
	if existing > 0 {
		return nil, conflict(op, "email already registered")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, &Error{Kind: ErrPersistence, Op: op, Message: "failed to hash password", Err: err}
	}

	user := models.User{
		Email:          req.Email,
		Username:       req.Username,
		Password:       string(hashed),
		ProfileDetails: map[string]any{},
	}
	if err := s.conn(ctx).Create(&user).Error; err != nil {
		return nil, storeError(op, "user", err)
	}
	return &user, nil
}

// Login checks the credentials and stamps last_login_at.
func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*models.User, error) {
	const op = "users.login"
	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(op, req); err != nil {
		return nil, err
	}

	badCredentials := &Error{Kind: ErrUnauthenticated, Op: op, Message: "invalid credentials"}

	var user models.User
	if err := s.conn(ctx).Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, badCredentials
		}
		return nil, storeError(op, "user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, badCredentials
	}

	now := s.now()
	if err := s.conn(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		return nil, storeError(op, "user", err)
	}
	user.LastLoginAt = &now
	return &user, nil
}

func (s *UserService) Profile(ctx context.Context, actor Actor) (*models.User, error) {
	const op = "users.profile"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	return s.find(ctx, op, actor.UserID)
}

// UpdateProfile changes the username or email and merges profile detail keys.
// A nil detail value removes the key.
func (s *UserService) UpdateProfile(ctx context.Context, actor Actor, req models.UpdateProfileRequest) (*models.User, error) {
	const op = "users.update_profile"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	if req.Username != nil {
		name := plainText(*req.Username)
		req.Username = &name
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		req.Email = &email
	}
	if err := validateStruct(op, req); err != nil {
		return nil, err
	}

	user, err := s.find(ctx, op, actor.UserID)
	if err != nil {
		return nil, err
	}

	if req.Email != nil && *req.Email != user.Email {
		var taken int64
		if err := s.conn(ctx).Model(&models.User{}).
			Where("email = ? AND user_id <> ?", *req.Email, user.ID).
			Count(&taken).Error; err != nil {
			return nil, storeError(op, "user", err)
		}
		if taken > 0 {
			return nil, conflict(op, "email already registered")
		}
		user.Email = *req.Email
	}
	if req.Username != nil {
		user.Username = *req.Username
	}
	if req.ProfileDetails != nil {
		if user.ProfileDetails == nil {
			user.ProfileDetails = map[string]any{}
		}
		for k, v := range req.ProfileDetails {
			if v == nil {
				delete(user.ProfileDetails, k)
				continue
			}
			user.ProfileDetails[k] = v
		}
	}

	if err := s.conn(ctx).Save(user).Error; err != nil {
		return nil, storeError(op, "user", err)
	}

	// members and feed entries embed the username and avatar
	var tribeIDs []uuid.UUID
	if err := s.conn(ctx).Model(&models.UserTribe{}).Where("user_id = ?", user.ID).Pluck("tribe_id", &tribeIDs).Error; err != nil {
		logging.Logger.Warn("profile: tribe lookup for cache invalidation failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return user, nil
	}
	s.invalidateTribes(ctx, tribeIDs...)
	for _, id := range tribeIDs {
		s.events.Publish(Event{
			Type:       EventProfileUpdated,
			TribeID:    id,
			UserID:     user.ID,
			Invalidate: []string{cache.MembersKey(id), cache.FeedTag(id)},
		})
	}
	return user, nil
}

// RegisterDeviceToken stores the FCM registration token used for push.
func (s *UserService) RegisterDeviceToken(ctx context.Context, actor Actor, token string) error {
	const op = "users.device_token"
	if err := actor.check(op); err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return invalid(op, "token", "is required")
	}
	res := s.conn(ctx).Model(&models.User{}).Where("user_id = ?", actor.UserID).Update("fcm_token", token)
	if res.Error != nil {
		return storeError(op, "user", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(op, "user")
	}
	return nil
}

func (s *UserService) find(ctx context.Context, op string, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).Where("user_id = ?", id).First(&user).Error; err != nil {
		return nil, storeError(op, "user", err)
	}
	return &user, nil
}
