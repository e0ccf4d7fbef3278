// Package cache holds short-lived copies of read-heavy collections (tribe
// feeds and member lists). Entries are grouped by key prefix so a mutation
// can drop every collection derived from the rows it touched.
package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	InvalidatePrefix(ctx context.Context, prefix string)
}

// TribeKey is the prefix of every cached collection derived from a tribe.
func TribeKey(tribeID uuid.UUID) string {
	return "tribe:" + tribeID.String() + ":"
}

func FeedKey(tribeID, viewer uuid.UUID, limit int) string {
	return TribeKey(tribeID) + "feed:" + viewer.String() + ":" + strconv.Itoa(limit)
}

// FeedTag is the refetch hint sent to clients when a tribe feed changes.
func FeedTag(tribeID uuid.UUID) string {
	return TribeKey(tribeID) + "feed"
}

func MembersKey(tribeID uuid.UUID) string {
	return TribeKey(tribeID) + "members"
}

// GoalKey tags collections derived from a single goal. Nothing server side is
// cached under it; clients receive it as a refetch hint.
func GoalKey(goalID uuid.UUID) string {
	return "goal:" + goalID.String()
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (Nop) Set(context.Context, string, []byte, time.Duration) {}
func (Nop) InvalidatePrefix(context.Context, string)           {}
