package services

import (
	"context"
	"errors"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"gorm.io/gorm"

	"github.com/arnold/tribes-api/internal/logging"
	"github.com/arnold/tribes-api/internal/metrics"
	"github.com/arnold/tribes-api/internal/models"
)

// Sender delivers one FCM message. *messaging.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

// PushService sends push notifications via Firebase Cloud Messaging. Sends go
// through a circuit breaker so an FCM outage does not pile up goroutines.
type PushService struct {
	db      *gorm.DB
	client  Sender
	breaker *gobreaker.CircuitBreaker[string]
	timeout time.Duration
}

// NewPush initializes the Firebase messaging client. A missing or unusable
// service account yields a disabled service rather than an error.
func NewPush(ctx context.Context, db *gorm.DB, serviceAccountPath string) *PushService {
	if serviceAccountPath == "" {
		logging.Logger.Info("fcm: no service account configured, push notifications disabled")
		return NewPushWithSender(db, nil)
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		logging.Logger.Warn("fcm: failed to initialize firebase app", zap.Error(err))
		return NewPushWithSender(db, nil)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		logging.Logger.Warn("fcm: failed to get messaging client", zap.Error(err))
		return NewPushWithSender(db, nil)
	}

	logging.Logger.Info("fcm: push notifications enabled")
	return NewPushWithSender(db, client)
}

func NewPushWithSender(db *gorm.DB, sender Sender) *PushService {
	p := &PushService{db: db, client: sender, timeout: 10 * time.Second}
	p.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "fcm",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Logger.Warn("fcm: circuit breaker state changed",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return p
}

func (p *PushService) Enabled() bool {
	return p != nil && p.client != nil
}

// NotifyUser sends a push notification to a user by their ID. It is a no-op
// when push is not configured or the user has no FCM token.
func (p *PushService) NotifyUser(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) {
	if !p.Enabled() {
		return
	}

	var user models.User
	if err := p.db.WithContext(ctx).Select("user_id", "fcm_token").Where("user_id = ?", userID).First(&user).Error; err != nil {
		return
	}
	if user.FCMToken == "" {
		metrics.PushSends.WithLabelValues("no_token").Inc()
		return
	}

	msg := &messaging.Message{
		Token: user.FCMToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	_, err := p.breaker.Execute(func() (string, error) {
		return p.client.Send(sendCtx, msg)
	})
	switch {
	case err == nil:
		metrics.PushSends.WithLabelValues("sent").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.PushSends.WithLabelValues("rejected").Inc()
	default:
		metrics.PushSends.WithLabelValues("failed").Inc()
		logging.Logger.Warn("fcm: send failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
}
