package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/drivio/drivio-backend/internal/bookingerr"
)

// respondError maps coded domain errors onto HTTP statuses. Uncoded
// errors are logged and reported as 500 without leaking details.
func respondError(c *fiber.Ctx, err error) error {
	var status int
	switch bookingerr.KindOf(err) {
	case bookingerr.KindBadRequest:
		status = fiber.StatusBadRequest
	case bookingerr.KindNotFound:
		status = fiber.StatusNotFound
	case bookingerr.KindForbidden:
		status = fiber.StatusForbidden
	case bookingerr.KindConflict:
		status = fiber.StatusConflict
	case bookingerr.KindUnprocessable:
		status = fiber.StatusUnprocessableEntity
	default:
		log.Printf("Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
