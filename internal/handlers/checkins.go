package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/arnold/tribes-api/internal/models"
)

func (h *Handler) DeleteCheckIn(c *fiber.Ctx) error {
	checkInID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid check-in ID")
	}

	if err := h.svc.CheckIns.Delete(c.UserContext(), actor(c), checkInID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleReaction adds the reaction, or removes it if the user already left
// the same one.
func (h *Handler) ToggleReaction(c *fiber.Ctx) error {
	checkInID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid check-in ID")
	}
	var req models.CreateReactionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	resp, err := h.svc.Reactions.Toggle(c.UserContext(), actor(c), checkInID, req.Type)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

func (h *Handler) GetReactions(c *fiber.Ctx) error {
	checkInID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid check-in ID")
	}

	summary, err := h.svc.Reactions.Summary(c.UserContext(), actor(c), checkInID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}
