package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu   sync.Mutex
	msgs []*messaging.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg *messaging.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.msgs = append(f.msgs, msg)
	return "projects/test/messages/1", nil
}

func TestPushDisabledWithoutSender(t *testing.T) {
	h := newHarness(t)
	p := NewPushWithSender(h.db, nil)
	assert.False(t, p.Enabled())

	var nilPush *PushService
	assert.False(t, nilPush.Enabled())
	assert.NotPanics(t, func() { p.NotifyUser(context.Background(), h.user(t, "ann").UserID, "t", "b", nil) })
}

func TestPushSendsToRegisteredToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sender := &fakeSender{}
	p := NewPushWithSender(h.db, sender)
	require.True(t, p.Enabled())

	ann := h.user(t, "ann")
	p.NotifyUser(ctx, ann.UserID, "New reaction", "Someone in your tribe reacted", map[string]string{"type": "reaction"})
	assert.Empty(t, sender.msgs)

	require.NoError(t, h.Users.RegisterDeviceToken(ctx, ann, "device-123"))
	p.NotifyUser(ctx, ann.UserID, "New reaction", "Someone in your tribe reacted", map[string]string{"type": "reaction"})

	require.Len(t, sender.msgs, 1)
	msg := sender.msgs[0]
	assert.Equal(t, "device-123", msg.Token)
	assert.Equal(t, "New reaction", msg.Notification.Title)
	assert.Equal(t, "reaction", msg.Data["type"])
}

func TestPushBreakerOpensAfterFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sender := &fakeSender{err: errors.New("fcm unavailable")}
	p := NewPushWithSender(h.db, sender)

	ann := h.user(t, "ann")
	require.NoError(t, h.Users.RegisterDeviceToken(ctx, ann, "device-123"))
	for i := 0; i < 6; i++ {
		p.NotifyUser(ctx, ann.UserID, "t", "b", nil)
	}
	assert.Equal(t, "open", p.breaker.State().String())
}
