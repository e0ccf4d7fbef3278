package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/arnold/tribes-api/internal/models"
)

// CheckAdmin is open to every signed-in user; the client uses it to decide
// whether to show the admin area.
func (h *Handler) CheckAdmin(c *fiber.Ctx) error {
	ok, err := h.svc.Admin.IsAdmin(c.UserContext(), actor(c).UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"isAdmin": ok})
}

func (h *Handler) GetAdminStats(c *fiber.Ctx) error {
	stats, err := h.svc.Admin.Stats(c.UserContext(), actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

func (h *Handler) GetAdminMetrics(c *fiber.Ctx) error {
	m, err := h.svc.Admin.Metrics(c.UserContext(), actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(m)
}

func (h *Handler) GetUsers(c *fiber.Ctx) error {
	users, err := h.svc.Admin.ListUsers(c.UserContext(), actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}

func (h *Handler) DeleteUser(c *fiber.Ctx) error {
	userID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}

	if err := h.svc.Admin.DeleteUser(c.UserContext(), actor(c), userID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) DeleteTribe(c *fiber.Ctx) error {
	tribeID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid tribe ID")
	}

	if err := h.svc.Tribes.DeleteTribe(c.UserContext(), actor(c), tribeID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) MoveUserToTribe(c *fiber.Ctx) error {
	userID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}
	var req models.MoveUserRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.svc.Tribes.MoveUser(c.UserContext(), actor(c), userID, req.TribeID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
