package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/drivio/drivio-backend/internal/middleware"
	"github.com/drivio/drivio-backend/internal/services"
)

// StaffHandler handles the on-site (PIC) operations: OTP verification,
// condition approval, pickup and return handover, overdue timeline.
type StaffHandler struct {
	svc      *services.BookingService
	validate *validator.Validate
}

// NewStaffHandler creates a new staff handler
func NewStaffHandler(svc *services.BookingService) *StaffHandler {
	return &StaffHandler{
		svc:      svc,
		validate: validator.New(),
	}
}

// VerifyOTP checks the code the customer presents at the parking.
func (h *StaffHandler) VerifyOTP(c *fiber.Ctx) error {
	var req struct {
		Code string `json:"code" validate:"required,len=4,numeric"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	booking, err := h.svc.VerifyOTP(c.Params("id"), middleware.UserID(c), req.Code)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "OTP verified",
		"booking": booking,
	})
}

// Approve records the staff decision on submitted condition evidence.
func (h *StaffHandler) Approve(c *fiber.Ctx) error {
	var req struct {
		Approved *bool  `json:"approved" validate:"required"`
		Comments string `json:"comments"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	booking, err := h.svc.PicApprove(c.Params("id"), middleware.UserID(c), *req.Approved, req.Comments)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Decision recorded",
		"booking": booking,
	})
}

// ConfirmPickup hands the car over to the customer.
func (h *StaffHandler) ConfirmPickup(c *fiber.Ctx) error {
	booking, err := h.svc.ConfirmPickup(c.Params("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Pickup confirmed, booking is active",
		"booking": booking,
	})
}

// ConfirmReturn records the car's return and completes the booking.
func (h *StaffHandler) ConfirmReturn(c *fiber.Ctx) error {
	var req struct {
		Condition string   `json:"condition" validate:"required"`
		Images    []string `json:"images"`
		Comments  string   `json:"comments"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	booking, err := h.svc.ConfirmReturn(c.Params("id"), middleware.UserID(c), services.ReturnInput{
		Condition: req.Condition,
		Images:    req.Images,
		Comments:  req.Comments,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Return confirmed, booking completed",
		"booking": booking,
	})
}

// ListOverdue returns the overdue timeline across active bookings.
func (h *StaffHandler) ListOverdue(c *fiber.Ctx) error {
	statuses, err := h.svc.ListOverdue()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"bookings": statuses,
		"count":    len(statuses),
	})
}
