package handlers

import (
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) GetTribes(c *fiber.Ctx) error {
	tribes, err := h.svc.Tribes.ListTribes(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tribes)
}

func (h *Handler) GetMyTribes(c *fiber.Ctx) error {
	tribes, err := h.svc.Tribes.UserTribes(c.UserContext(), actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tribes)
}

func (h *Handler) GetTribeMembers(c *fiber.Ctx) error {
	tribeID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid tribe ID")
	}

	members, err := h.svc.Tribes.ListMembers(c.UserContext(), actor(c), tribeID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"members": members,
		"count":   len(members),
	})
}

// GetTribeFeed returns the newest check-ins; ?limit= caps the page size.
func (h *Handler) GetTribeFeed(c *fiber.Ctx) error {
	tribeID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid tribe ID")
	}

	feed, err := h.svc.CheckIns.Feed(c.UserContext(), actor(c), tribeID, c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(feed)
}

func (h *Handler) LeaveTribe(c *fiber.Ctx) error {
	tribeID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid tribe ID")
	}

	a := actor(c)
	if err := h.svc.Tribes.RemoveUserFromTribe(c.UserContext(), a, a.UserID, tribeID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
