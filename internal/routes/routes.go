package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/arnold/tribes-api/internal/config"
	"github.com/arnold/tribes-api/internal/handlers"
	"github.com/arnold/tribes-api/internal/middleware"
)

func Setup(app *fiber.App, h *handlers.Handler, cfg *config.Config) {
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute).Handler()
	protected := middleware.Protected(cfg.JWTSecret)

	api := app.Group("/api")

	auth := api.Group("/auth", limiter)
	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)

	me := api.Group("/me", protected)
	me.Get("/", h.GetMe)
	me.Put("/", limiter, h.UpdateProfile)
	api.Post("/device-token", protected, h.RegisterDeviceToken)
	api.Post("/uploads/photo", protected, limiter, h.UploadPhoto)

	goals := api.Group("/goals", protected)
	goals.Get("/", h.GetGoals)
	goals.Post("/", limiter, h.CreateGoal)
	goals.Get("/active", h.GetActiveGoal)
	goals.Get("/completed", h.HasCompletedGoal)
	goals.Get("/:id", h.GetGoal)
	goals.Put("/:id", limiter, h.UpdateGoal)
	goals.Delete("/:id", limiter, h.DeleteGoal)
	goals.Post("/:id/complete", limiter, h.CompleteGoal)
	goals.Get("/:id/next-check-in", h.GetNextCheckIn)
	goals.Get("/:id/check-ins", h.GetGoalCheckIns)
	goals.Post("/:id/check-ins", limiter, h.AddCheckIn)

	tribes := api.Group("/tribes", protected)
	tribes.Get("/", h.GetTribes)
	tribes.Get("/mine", h.GetMyTribes)
	tribes.Get("/:id/members", h.GetTribeMembers)
	tribes.Get("/:id/feed", h.GetTribeFeed)
	tribes.Delete("/:id/membership", limiter, h.LeaveTribe)

	checkIns := api.Group("/check-ins", protected)
	checkIns.Delete("/:id", limiter, h.DeleteCheckIn)
	checkIns.Post("/:id/reactions", limiter, h.ToggleReaction)
	checkIns.Get("/:id/reactions", h.GetReactions)

	admin := api.Group("/admin", protected)
	admin.Get("/check", h.CheckAdmin)
	admin.Get("/stats", h.GetAdminStats)
	admin.Get("/metrics", h.GetAdminMetrics)
	admin.Get("/users", h.GetUsers)
	admin.Delete("/users/:id", h.DeleteUser)
	admin.Put("/users/:id/tribe", h.MoveUserToTribe)
	admin.Delete("/tribes/:id", h.DeleteTribe)

	app.Static("/uploads", cfg.UploadDir)

	// WebSocket for live tribe feed invalidation
	app.Get("/ws/tribes/:id", protected, h.WebSocketUpgrade, websocket.New(h.HandleWebSocket))
}
