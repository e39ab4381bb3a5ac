package server

import (
	"errors"

	"polished/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		label := "ID"
		if param == "postId" {
			label = "post ID"
		}
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+label))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// respondServiceError maps an application error to its HTTP status and
// writes the standardized error body.
func respondServiceError(c *fiber.Ctx, err error) error {
	var status int
	switch models.ErrorCode(err) {
	case models.CodeNotFound:
		status = fiber.StatusNotFound
	case models.CodeValidation:
		status = fiber.StatusBadRequest
	case models.CodeUnconfigured:
		status = fiber.StatusUnprocessableEntity
	case models.CodeCollaborator:
		status = fiber.StatusInternalServerError
	default:
		status = fiber.StatusInternalServerError
	}
	return models.RespondWithError(c, status, err)
}
