package handlers

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/drivio/drivio-backend/internal/middleware"
	"github.com/drivio/drivio-backend/internal/models"
	"github.com/drivio/drivio-backend/internal/services"
)

// BookingHandler handles the customer-facing booking lifecycle requests
type BookingHandler struct {
	svc      *services.BookingService
	limiter  services.RateLimiter
	validate *validator.Validate
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(svc *services.BookingService, limiter services.RateLimiter) *BookingHandler {
	return &BookingHandler{
		svc:      svc,
		limiter:  limiter,
		validate: validator.New(),
	}
}

type toolItemRequest struct {
	Name     string `json:"name" validate:"required"`
	ImageURL string `json:"image_url"`
}

// CreateBooking handles creating a new booking
func (h *BookingHandler) CreateBooking(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if !h.limiter.Allow("create:" + userID) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "Too many booking attempts, slow down",
		})
	}

	var req struct {
		CarID            string     `json:"car_id" validate:"required"`
		StartDate        time.Time  `json:"start_date" validate:"required"`
		EndDate          time.Time  `json:"end_date" validate:"required"`
		PickupDate       *time.Time `json:"pickup_date"`
		CouponCode       string     `json:"coupon_code"`
		DropoffParkingID string     `json:"dropoff_parking_id"`
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

	booking, err := h.svc.CreateBooking(services.CreateBookingInput{
		UserID:           userID,
		CarID:            req.CarID,
		CouponCode:       req.CouponCode,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		PickupDate:       req.PickupDate,
		DropoffParkingID: req.DropoffParkingID,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Booking created successfully",
		"booking": booking,
	})
}

// GetBooking retrieves booking by ID. Customers see only their own.
func (h *BookingHandler) GetBooking(c *fiber.Ctx) error {
	booking, err := h.svc.GetBooking(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	role, _ := c.Locals("role").(string)
	if booking.UserID != middleware.UserID(c) && role != models.RoleStaff && role != models.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Not your booking",
		})
	}
	return c.JSON(booking)
}

// GetMyBookings lists the caller's bookings.
func (h *BookingHandler) GetMyBookings(c *fiber.Ctx) error {
	bookings, err := h.svc.GetUserBookings(middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"bookings": bookings,
		"count":    len(bookings),
	})
}

// ConfirmAdvancePayment records the reservation installment.
func (h *BookingHandler) ConfirmAdvancePayment(c *fiber.Ctx) error {
	var req struct {
		ExternalReferenceID string `json:"external_reference_id" validate:"required"`
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

	booking, err := h.svc.ConfirmAdvancePayment(c.Params("id"), middleware.UserID(c), req.ExternalReferenceID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Advance payment recorded, pickup code sent",
		"booking": booking,
	})
}

// ConfirmFinalPayment settles the remainder.
func (h *BookingHandler) ConfirmFinalPayment(c *fiber.Ctx) error {
	var req struct {
		ExternalReferenceID string `json:"external_reference_id" validate:"required"`
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

	booking, err := h.svc.ConfirmFinalPayment(c.Params("id"), middleware.UserID(c), req.ExternalReferenceID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Final payment recorded",
		"booking": booking,
	})
}

// SubmitConfirmation uploads the customer's condition evidence.
func (h *BookingHandler) SubmitConfirmation(c *fiber.Ctx) error {
	var req struct {
		CarConditionImages []string          `json:"car_condition_images" validate:"required,min=1"`
		ToolImages         []string          `json:"tool_images"`
		Tools              []toolItemRequest `json:"tools" validate:"dive"`
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

	tools := make([]models.ToolItem, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, models.ToolItem{Name: t.Name, ImageURL: t.ImageURL})
	}

	booking, err := h.svc.SubmitConfirmation(c.Params("id"), middleware.UserID(c), services.ConfirmationInput{
		CarConditionImages: req.CarConditionImages,
		ToolImages:         req.ToolImages,
		Tools:              tools,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Condition confirmation submitted for approval",
		"booking": booking,
	})
}

// ResubmitConfirmation re-queues a rejected confirmation.
func (h *BookingHandler) ResubmitConfirmation(c *fiber.Ctx) error {
	booking, err := h.svc.ResubmitConfirmation(c.Params("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Condition confirmation resubmitted",
		"booking": booking,
	})
}

// ResendOTP regenerates and resends the pickup code.
func (h *BookingHandler) ResendOTP(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if !h.limiter.Allow("otp:" + userID) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "Too many OTP requests, slow down",
		})
	}

	booking, err := h.svc.ResendOTP(c.Params("id"), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Pickup code resent",
		"booking": booking,
	})
}

// ApplyTopup purchases a time extension for an active booking.
func (h *BookingHandler) ApplyTopup(c *fiber.Ctx) error {
	var req struct {
		TopupID             string `json:"topup_id" validate:"required"`
		ExternalReferenceID string `json:"external_reference_id" validate:"required"`
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

	booking, err := h.svc.ApplyTopup(c.Params("id"), middleware.UserID(c), req.TopupID, req.ExternalReferenceID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Topup applied",
		"booking": booking,
	})
}

// ListTopups lists purchasable extensions.
func (h *BookingHandler) ListTopups(c *fiber.Ctx) error {
	topups, err := h.svc.ListTopups()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"topups": topups,
		"count":  len(topups),
	})
}

// RescheduleBooking moves the rental window.
func (h *BookingHandler) RescheduleBooking(c *fiber.Ctx) error {
	var req struct {
		StartDate  time.Time  `json:"start_date" validate:"required"`
		EndDate    time.Time  `json:"end_date" validate:"required"`
		PickupDate *time.Time `json:"pickup_date"`
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

	booking, err := h.svc.RescheduleBooking(c.Params("id"), middleware.UserID(c), req.StartDate, req.EndDate, req.PickupDate)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Booking rescheduled",
		"booking": booking,
	})
}

// DeleteBooking cancels a non-terminal booking and releases the car.
func (h *BookingHandler) DeleteBooking(c *fiber.Ctx) error {
	if err := h.svc.DeleteBooking(c.Params("id"), middleware.UserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Booking cancelled",
	})
}

// GetOverdueStatus reports where a booking stands against its effective
// end time. Customers see only their own bookings.
func (h *BookingHandler) GetOverdueStatus(c *fiber.Ctx) error {
	booking, err := h.svc.GetBooking(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	role, _ := c.Locals("role").(string)
	if booking.UserID != middleware.UserID(c) && role != models.RoleStaff && role != models.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Not your booking",
		})
	}

	status, err := h.svc.GetOverdueStatus(booking.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(status)
}
