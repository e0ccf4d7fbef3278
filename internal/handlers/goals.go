package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/arnold/tribes-api/internal/models"
)

func (h *Handler) GetGoals(c *fiber.Ctx) error {
	goals, err := h.svc.Goals.List(c.UserContext(), actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(goals)
}

func (h *Handler) CreateGoal(c *fiber.Ctx) error {
	var form models.GoalForm
	if err := c.BodyParser(&form); err != nil {
		return badRequest(c, "Invalid request body")
	}

	goal, err := h.svc.Goals.Create(c.UserContext(), actor(c), form)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(goal)
}

// GetActiveGoal answers {"goal": null} when the user has no active goal.
func (h *Handler) GetActiveGoal(c *fiber.Ctx) error {
	goal, err := h.svc.Goals.Active(c.UserContext(), actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"goal": goal})
}

func (h *Handler) HasCompletedGoal(c *fiber.Ctx) error {
	done, err := h.svc.Goals.HasCompleted(c.UserContext(), actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"hasCompletedGoal": done})
}

func (h *Handler) GetGoal(c *fiber.Ctx) error {
	goalID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid goal ID")
	}

	goal, err := h.svc.Goals.Get(c.UserContext(), actor(c), goalID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(goal)
}

func (h *Handler) UpdateGoal(c *fiber.Ctx) error {
	goalID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid goal ID")
	}
	var req models.UpdateGoalRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	goal, err := h.svc.Goals.Update(c.UserContext(), actor(c), goalID, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(goal)
}

func (h *Handler) CompleteGoal(c *fiber.Ctx) error {
	goalID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid goal ID")
	}

	goal, err := h.svc.Goals.Complete(c.UserContext(), actor(c), goalID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(goal)
}

func (h *Handler) DeleteGoal(c *fiber.Ctx) error {
	goalID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid goal ID")
	}

	if err := h.svc.Goals.Delete(c.UserContext(), actor(c), goalID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetNextCheckIn reports when the next check-in is due and whether it is
// already overdue.
func (h *Handler) GetNextCheckIn(c *fiber.Ctx) error {
	goalID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid goal ID")
	}

	goal, err := h.svc.Goals.Get(c.UserContext(), actor(c), goalID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"nextCheckIn": goal.NextCheckIn,
		"due":         goal.CheckInDue,
	})
}

func (h *Handler) AddCheckIn(c *fiber.Ctx) error {
	goalID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid goal ID")
	}
	var req models.CheckInRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := h.svc.CheckIns.Add(c.UserContext(), actor(c), goalID, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *Handler) GetGoalCheckIns(c *fiber.Ctx) error {
	goalID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid goal ID")
	}

	checkIns, err := h.svc.CheckIns.ForGoal(c.UserContext(), actor(c), goalID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(checkIns)
}
