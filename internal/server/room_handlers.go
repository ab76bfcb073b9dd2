package server

import (
	"parlor/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// GetRooms handles GET /api/rooms. The optional keyword query filters the
// list the same way the searchRooms websocket event does, so it passes
// through the same sanitizer as stored names.
func (s *Server) GetRooms(c *fiber.Ctx) error {
	keyword := validation.Sanitize(c.Query("keyword"))

	rooms := s.coordinator.Rooms().Search(keyword)
	return c.JSON(fiber.Map{
		"rooms": rooms,
	})
}
