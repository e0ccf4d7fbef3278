package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/arnold/tribes-api/internal/config"
	"github.com/arnold/tribes-api/internal/middleware"
	"github.com/arnold/tribes-api/internal/services"
)

// Handler exposes the services over HTTP.
type Handler struct {
	svc *services.Services
	cfg *config.Config
	hub *Hub
}

func New(svc *services.Services, cfg *config.Config, hub *Hub) *Handler {
	return &Handler{svc: svc, cfg: cfg, hub: hub}
}

func actor(c *fiber.Ctx) services.Actor {
	return services.Actor{
		UserID: middleware.GetUserID(c),
		Email:  middleware.GetEmail(c),
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

func parseID(c *fiber.Ctx, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(param))
	return id, err == nil
}

// respondError maps a service error kind to its HTTP status. Store failures
// were already logged by the service.
func respondError(c *fiber.Ctx, err error) error {
	var se *services.Error
	if !errors.As(err, &se) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}

	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrAuthorization):
		status = fiber.StatusForbidden
	case errors.Is(err, services.ErrConflict):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrUnauthenticated):
		status = fiber.StatusUnauthorized
	}

	body := fiber.Map{"error": se.Message}
	if se.Field != "" {
		body["error"] = se.Field + " " + se.Message
		body["field"] = se.Field
	}
	return c.Status(status).JSON(body)
}
