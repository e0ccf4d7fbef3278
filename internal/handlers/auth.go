package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/arnold/tribes-api/internal/middleware"
	"github.com/arnold/tribes-api/internal/models"
)

func (h *Handler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := h.svc.Users.Register(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return h.issueToken(c, fiber.StatusCreated, user)
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := h.svc.Users.Login(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return h.issueToken(c, fiber.StatusOK, user)
}

func (h *Handler) issueToken(c *fiber.Ctx, status int, user *models.User) error {
	token, err := middleware.GenerateToken(h.cfg.JWTSecret, user.ID, user.Email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}
	return c.Status(status).JSON(models.AuthResponse{
		Token: token,
		User:  *user,
	})
}

func (h *Handler) GetMe(c *fiber.Ctx) error {
	user, err := h.svc.Users.Profile(c.UserContext(), actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	var req models.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := h.svc.Users.UpdateProfile(c.UserContext(), actor(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// RegisterDeviceToken saves the FCM token for push notifications
func (h *Handler) RegisterDeviceToken(c *fiber.Ctx) error {
	var req models.DeviceTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.svc.Users.RegisterDeviceToken(c.UserContext(), actor(c), req.Token); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
