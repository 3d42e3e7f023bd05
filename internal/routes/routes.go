package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/drivio/drivio-backend/internal/handlers"
	"github.com/drivio/drivio-backend/internal/middleware"
	"github.com/drivio/drivio-backend/internal/models"
	"github.com/drivio/drivio-backend/internal/services"
	"github.com/drivio/drivio-backend/internal/storage"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, store storage.Store, svc *services.BookingService, limiter services.RateLimiter) {
	bookingHandler := handlers.NewBookingHandler(svc, limiter)
	staffHandler := handlers.NewStaffHandler(svc)
	paymentHandler := handlers.NewPaymentHandler(svc, store)
	healthHandler := handlers.NewHealthHandler("1.0.0")

	app.Get("/health", healthHandler.Check)

	api := app.Group("/api", middleware.Protected())

	// Customer booking lifecycle
	bookings := api.Group("/bookings")
	bookings.Post("/", bookingHandler.CreateBooking)
	bookings.Get("/mine", bookingHandler.GetMyBookings)
	bookings.Get("/:id", bookingHandler.GetBooking)
	bookings.Delete("/:id", bookingHandler.DeleteBooking)
	bookings.Put("/:id/reschedule", bookingHandler.RescheduleBooking)
	bookings.Post("/:id/payments/advance", bookingHandler.ConfirmAdvancePayment)
	bookings.Post("/:id/payments/final", bookingHandler.ConfirmFinalPayment)
	bookings.Get("/:id/payments", paymentHandler.GetBookingPayments)
	bookings.Post("/:id/confirmation", bookingHandler.SubmitConfirmation)
	bookings.Post("/:id/confirmation/resubmit", bookingHandler.ResubmitConfirmation)
	bookings.Post("/:id/otp/resend", bookingHandler.ResendOTP)
	bookings.Post("/:id/topup", bookingHandler.ApplyTopup)
	bookings.Get("/:id/overdue", bookingHandler.GetOverdueStatus)

	api.Get("/topups", bookingHandler.ListTopups)

	// Staff (PIC) operations
	staff := api.Group("/staff", middleware.RequireRole(models.RoleStaff, models.RoleAdmin))
	staff.Post("/bookings/:id/otp/verify", staffHandler.VerifyOTP)
	staff.Post("/bookings/:id/approve", staffHandler.Approve)
	staff.Post("/bookings/:id/pickup", staffHandler.ConfirmPickup)
	staff.Post("/bookings/:id/return", staffHandler.ConfirmReturn)
	staff.Get("/overdue", staffHandler.ListOverdue)
	staff.Post("/payments/:paymentID/refund", paymentHandler.Refund)
}
