package server

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"parlor/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// FileUploadResponse is the API response after uploading a file.
type FileUploadResponse struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
}

// UploadFile handles POST /api/upload. The returned URL is what clients put
// into file messages.
func (s *Server) UploadFile(c *fiber.Ctx) error {
	if !s.featureFlags.Enabled("uploads", c.IP()) {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewUnauthorizedError("File uploads are disabled"))
	}

	file, err := c.FormFile("file")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
	}

	if file.Size > s.config.MaxUploadSize {
		return models.RespondWithError(c, fiber.StatusRequestEntityTooLarge,
			models.NewValidationError(fmt.Sprintf("File exceeds the %d byte limit", s.config.MaxUploadSize)))
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	mimeType := file.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mime.TypeByExtension(ext)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	if err := os.MkdirAll(s.config.UploadDir, 0o755); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	// Random name on disk so uploaded filenames cannot collide or traverse
	name := uuid.NewString() + ext
	if err := c.SaveFile(file, filepath.Join(s.config.UploadDir, name)); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	return c.JSON(FileUploadResponse{
		URL:      "/files/" + name,
		MimeType: mimeType,
	})
}
