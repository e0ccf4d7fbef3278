package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/arnold/tribes-api/internal/cache"
	"github.com/arnold/tribes-api/internal/database"
	"github.com/arnold/tribes-api/internal/models"
)

var jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type notification struct {
	userID uuid.UUID
	body   string
	data   map[string]string
}

type fakeNotifier struct {
	sent chan notification
}

func (f *fakeNotifier) NotifyUser(_ context.Context, userID uuid.UUID, _, body string, data map[string]string) {
	f.sent <- notification{userID: userID, body: body, data: data}
}

type harness struct {
	*Services
	db     *gorm.DB
	clock  *testClock
	events *recorder
	push   *fakeNotifier
	cache  *cache.Memory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	h := &harness{
		db:     db,
		clock:  &testClock{t: jan1},
		events: &recorder{},
		push:   &fakeNotifier{sent: make(chan notification, 8)},
		cache:  cache.NewMemory(),
	}
	h.Services = New(Deps{
		DB:           db,
		Cache:        h.cache,
		CacheTTL:     time.Minute,
		Events:       h.events,
		Push:         h.push,
		Now:          h.clock.Now,
		ProgressStep: 10,
	})
	return h
}

func (h *harness) user(t *testing.T, name string) Actor {
	t.Helper()
	u := models.User{Username: name, Email: name + "@example.com"}
	require.NoError(t, h.db.Create(&u).Error)
	return Actor{UserID: u.ID, Email: u.Email}
}

func (h *harness) admin(t *testing.T, name string) Actor {
	t.Helper()
	u := models.User{Username: name, Email: name + "@example.com", IsAdmin: true}
	require.NoError(t, h.db.Create(&u).Error)
	return Actor{UserID: u.ID, Email: u.Email}
}

func validForm(freq models.Frequency) models.GoalForm {
	return models.GoalForm{
		Title:       "Run every morning",
		Description: "Build up to a 5k without stopping",
		Motivator:   "Feel stronger",
		Timeframe:   freq,
		Celebration: "New running shoes",
		Duration:    "30",
	}
}

func (h *harness) goal(t *testing.T, actor Actor, freq models.Frequency) *models.GoalView {
	t.Helper()
	g, err := h.Goals.Create(context.Background(), actor, validForm(freq))
	require.NoError(t, err)
	return g
}
