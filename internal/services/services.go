// Package services implements the accountability domain: goal lifecycle,
// tribe assignment, check-ins, reactions and the admin counters. Every
// operation takes the calling Actor explicitly and returns *Error values
// classified by kind.
package services

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arnold/tribes-api/internal/cache"
)

const defaultProgressStep = 10

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID uuid.UUID
	Email  string
}

func (a Actor) check(op string) error {
	if a.UserID == uuid.Nil {
		return &Error{Kind: ErrUnauthenticated, Op: op, Message: "cannot determine the calling user"}
	}
	return nil
}

// Event types pushed to tribe rooms.
const (
	EventCheckInAdded    = "check_in_added"
	EventCheckInDeleted  = "check_in_deleted"
	EventReactionToggled = "reaction_toggled"
	EventMemberJoined    = "member_joined"
	EventMemberLeft      = "member_left"
	EventTribeDeleted    = "tribe_deleted"
	EventProfileUpdated  = "profile_updated"
)

// Event tells connected clients which collections went stale.
type Event struct {
	Type       string    `json:"type"`
	TribeID    uuid.UUID `json:"tribeId"`
	UserID     uuid.UUID `json:"userId"`
	Invalidate []string  `json:"invalidate,omitempty"`
	Data       any       `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ev Event)
}

type Notifier interface {
	NotifyUser(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}

type nopNotifier struct{}

func (nopNotifier) NotifyUser(context.Context, uuid.UUID, string, string, map[string]string) {}

type Deps struct {
	DB               *gorm.DB
	Cache            cache.Cache
	CacheTTL         time.Duration
	Events           Publisher
	Push             Notifier
	Now              func() time.Time
	ProgressStep     int
	ActiveUserWindow time.Duration
}

type Services struct {
	Users     *UserService
	Goals     *GoalService
	Tribes    *TribeService
	CheckIns  *CheckInService
	Reactions *ReactionService
	Admin     *AdminService
}

func New(d Deps) *Services {
	e := &env{
		db:           d.DB,
		cache:        d.Cache,
		ttl:          d.CacheTTL,
		events:       d.Events,
		push:         d.Push,
		clock:        d.Now,
		progressStep: d.ProgressStep,
		activeWindow: d.ActiveUserWindow,
	}
	if e.cache == nil {
		e.cache = cache.Nop{}
	}
	if e.ttl <= 0 {
		e.ttl = 5 * time.Minute
	}
	if e.events == nil {
		e.events = nopPublisher{}
	}
	if e.push == nil {
		e.push = nopNotifier{}
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.progressStep <= 0 {
		e.progressStep = defaultProgressStep
	}
	if e.activeWindow <= 0 {
		e.activeWindow = 30 * 24 * time.Hour
	}

	admin := &AdminService{env: e}
	tribes := &TribeService{env: e, admin: admin}
	reactions := &ReactionService{env: e, tribes: tribes}
	return &Services{
		Users:     &UserService{env: e},
		Goals:     &GoalService{env: e, tribes: tribes, admin: admin},
		Tribes:    tribes,
		CheckIns:  &CheckInService{env: e, tribes: tribes, reactions: reactions, admin: admin},
		Reactions: reactions,
		Admin:     admin,
	}
}

// env is the state shared by every service.
type env struct {
	db           *gorm.DB
	cache        cache.Cache
	ttl          time.Duration
	events       Publisher
	push         Notifier
	clock        func() time.Time
	progressStep int
	activeWindow time.Duration
}

func (e *env) now() time.Time {
	return e.clock().UTC()
}

func (e *env) conn(ctx context.Context) *gorm.DB {
	return e.db.WithContext(ctx)
}

func (e *env) invalidateTribes(ctx context.Context, tribeIDs ...uuid.UUID) {
	for _, id := range tribeIDs {
		e.cache.InvalidatePrefix(ctx, cache.TribeKey(id))
	}
}

func (e *env) cached(ctx context.Context, key string, dst any) bool {
	b, ok := e.cache.Get(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(b, dst) == nil
}

func (e *env) store(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	e.cache.Set(ctx, key, b, e.ttl)
}
