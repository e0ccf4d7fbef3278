package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestRateLimiterBurst(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(4)
	rl.now = fixedClock(&now)

	assert.True(t, rl.allow("alice"))
	assert.True(t, rl.allow("alice"))
	assert.False(t, rl.allow("alice"))
	assert.True(t, rl.allow("bob"))

	now = now.Add(15 * time.Second)
	assert.True(t, rl.allow("alice"))
}

func TestRateLimiterSweepsIdleBucketsPeriodically(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(60)
	rl.now = fixedClock(&now)

	require.True(t, rl.allow("alice"))
	rl.buckets["stale"] = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst), expires: now.Add(-time.Second)}

	now = now.Add(10 * time.Second)
	require.True(t, rl.allow("bob"))
	assert.Contains(t, rl.buckets, "stale")

	now = now.Add(sweepInterval)
	require.True(t, rl.allow("bob"))
	assert.NotContains(t, rl.buckets, "stale")
	assert.Contains(t, rl.buckets, "alice")

	now = now.Add(limiterIdle + sweepInterval)
	require.True(t, rl.allow("carol"))
	assert.Len(t, rl.buckets, 1)
}

func TestRateLimiterHandler(t *testing.T) {
	app := fiber.New()
	app.Post("/", NewRateLimiter(2).Handler(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	statuses := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/", nil))
		require.NoError(t, err)
		statuses = append(statuses, resp.StatusCode)
	}
	assert.Equal(t, []int{fiber.StatusNoContent, fiber.StatusTooManyRequests}, statuses)
}
