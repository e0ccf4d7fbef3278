package handlers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arnold/tribes-api/internal/logging"
)

const maxPhotoBytes = 5 * 1024 * 1024

var photoTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// UploadPhoto stores a check-in photo and returns the URL to send as the
// check-in's photo field.
func (h *Handler) UploadPhoto(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return badRequest(c, "No image file provided")
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	want, ok := photoTypes[ext]
	if !ok {
		return badRequest(c, "Only jpg, png, and webp images are allowed")
	}
	if ct := file.Header.Get("Content-Type"); ct != "" && ct != want {
		return badRequest(c, "Image content type does not match its extension")
	}
	if file.Size > maxPhotoBytes {
		return badRequest(c, "Image must be under 5MB")
	}

	// one directory per user
	owner := actor(c).UserID.String()
	dir := filepath.Join(h.cfg.UploadDir, owner)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.Logger.Error("create upload dir", zap.String("dir", dir), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store image",
		})
	}

	filename := uuid.New().String() + ext
	if err := c.SaveFile(file, filepath.Join(dir, filename)); err != nil {
		logging.Logger.Error("save upload", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store image",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"url": fmt.Sprintf("/uploads/%s/%s", owner, filename),
	})
}
