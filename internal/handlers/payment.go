package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/drivio/drivio-backend/internal/middleware"
	"github.com/drivio/drivio-backend/internal/models"
	"github.com/drivio/drivio-backend/internal/services"
	"github.com/drivio/drivio-backend/internal/storage"
)

// PaymentHandler exposes the payment ledger: per-booking payment history
// and staff-recorded refunds.
type PaymentHandler struct {
	svc      *services.BookingService
	store    storage.Store
	validate *validator.Validate
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(svc *services.BookingService, store storage.Store) *PaymentHandler {
	return &PaymentHandler{
		svc:      svc,
		store:    store,
		validate: validator.New(),
	}
}

// GetBookingPayments lists the payment facts recorded for a booking.
func (h *PaymentHandler) GetBookingPayments(c *fiber.Ctx) error {
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

	payments, err := h.store.GetPaymentsByBooking(booking.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"payments": payments,
		"count":    len(payments),
	})
}

// Refund records a full or partial refund against a completed payment.
func (h *PaymentHandler) Refund(c *fiber.Ctx) error {
	var req struct {
		Amount float64 `json:"amount" validate:"required,gt=0"`
		Reason string  `json:"reason"`
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

	payment, err := h.svc.RefundPayment(c.Params("paymentID"), middleware.UserID(c), req.Amount, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Refund recorded",
		"payment": payment,
	})
}
