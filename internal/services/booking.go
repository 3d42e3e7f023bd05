package services

import (
	"fmt"
	"log"
	"time"

	"github.com/drivio/drivio-backend/internal/bookingerr"
	"github.com/drivio/drivio-backend/internal/models"
	"github.com/drivio/drivio-backend/internal/storage"
)

// BookingService orchestrates the rental lifecycle: availability check,
// pricing, split payments, OTP-gated handover, staff confirmation, topups
// and return. Status is advanced by exactly one transition per operation;
// OTP and confirmation results are recorded facts checked as pickup gates.
type BookingService struct {
	store    storage.Store
	pricing  *PricingService
	otp      *OTPService
	notifier Notifier
	now      func() time.Time
}

// Option configures a BookingService.
type Option func(*BookingService)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *BookingService) { s.now = now }
}

// NewBookingService creates a new booking service
func NewBookingService(store storage.Store, notifier Notifier, opts ...Option) *BookingService {
	s := &BookingService{
		store:    store,
		pricing:  NewPricingService(),
		otp:      NewOTPService(),
		notifier: notifier,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateBookingInput carries a reservation request.
type CreateBookingInput struct {
	UserID           string
	CarID            string
	CouponCode       string
	StartDate        time.Time
	EndDate          time.Time
	PickupDate       *time.Time
	DropoffParkingID string
}

// CreateBooking prices the request and reserves the car. The overlap
// check and the insert run atomically in the store, so two concurrent
// requests for the same slot yield one success and one conflict.
func (s *BookingService) CreateBooking(in CreateBookingInput) (*models.Booking, error) {
	now := s.now()

	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return nil, bookingerr.BadRequest("start and end dates are required")
	}
	if !in.EndDate.After(in.StartDate) {
		return nil, bookingerr.BadRequest("end date must be after start date")
	}
	if in.StartDate.Before(now) {
		return nil, bookingerr.BadRequest("start date cannot be in the past")
	}
	if in.PickupDate != nil && (in.PickupDate.Before(in.StartDate) || in.PickupDate.After(in.EndDate)) {
		return nil, bookingerr.BadRequest("pickup date must fall within the rental window")
	}

	user, err := s.store.GetUser(in.UserID)
	if err != nil {
		return nil, err
	}
	if !user.Verified {
		return nil, bookingerr.Forbidden("user is not verified")
	}

	car, err := s.store.GetCar(in.CarID)
	if err != nil {
		return nil, err
	}
	if car.Status == models.CarStatusMaintenance {
		return nil, bookingerr.Conflict("car is under maintenance")
	}

	var coupon *models.Coupon
	redemptions := 0
	if in.CouponCode != "" {
		coupon, err = s.store.GetCouponByCode(in.CouponCode)
		if err != nil {
			return nil, err
		}
		redemptions, err = s.store.CountCouponRedemptions(coupon.ID, in.UserID)
		if err != nil {
			return nil, err
		}
	}

	quote, err := s.pricing.Quote(car, coupon, redemptions, in.StartDate, in.EndDate, now)
	if err != nil {
		return nil, err
	}

	dropoffParking := in.DropoffParkingID
	if dropoffParking == "" {
		dropoffParking = car.ParkingID
	}

	booking := &models.Booking{
		UserID:             in.UserID,
		CarID:              in.CarID,
		StartDate:          in.StartDate,
		EndDate:            in.EndDate,
		PickupDate:         in.PickupDate,
		BasePrice:          quote.BasePrice,
		InsuranceAmount:    quote.InsuranceAmount,
		DeliveryCharges:    quote.DeliveryCharges,
		DiscountAmount:     quote.DiscountAmount,
		TotalPrice:         quote.TotalPrice,
		AdvanceAmount:      quote.AdvanceAmount,
		RemainingAmount:    quote.RemainingAmount,
		Status:             models.BookingStatusPending,
		ConfirmationStatus: models.ConfirmationStatusPending,
		PickupParkingID:    car.ParkingID,
		DropoffParkingID:   dropoffParking,
		MaxRescheduleCount: models.DefaultMaxReschedules,
	}
	if coupon != nil {
		booking.CouponID = coupon.ID
	}

	// The redemption is taken before the insert so two concurrent creates
	// cannot both pass the usage-limit check
	if coupon != nil {
		if err := s.store.RedeemCoupon(coupon.ID); err != nil {
			return nil, err
		}
	}

	booking, err = s.store.CreateBookingIfAvailable(booking)
	if err != nil {
		if coupon != nil {
			if rerr := s.store.ReleaseCouponRedemption(coupon.ID); rerr != nil {
				log.Printf("Failed to release coupon %s after create failure: %v", coupon.ID, rerr)
			}
		}
		return nil, err
	}

	return booking, nil
}

// GetBooking retrieves one booking.
func (s *BookingService) GetBooking(id string) (*models.Booking, error) {
	return s.store.GetBooking(id)
}

// GetUserBookings lists a customer's bookings.
func (s *BookingService) GetUserBookings(userID string) ([]*models.Booking, error) {
	return s.store.GetBookingsByUser(userID)
}

// ConfirmAdvancePayment records the reservation installment. The caller
// supplies the gateway's reference after out-of-band confirmation.
// Idempotent: a retry after success fails with a conflict. On success the
// pickup OTP is issued and sent to the customer.
func (s *BookingService) ConfirmAdvancePayment(bookingID, requesterID, externalRef string) (*models.Booking, error) {
	if externalRef == "" {
		return nil, bookingerr.BadRequest("external payment reference is required")
	}

	now := s.now()
	var updated *models.Booking

	err := s.store.WithBookingLock(bookingID, func(tx storage.Store, b *models.Booking) error {
		if b.UserID != requesterID {
			return bookingerr.Forbidden("booking belongs to another user")
		}
		if b.AdvancePaymentID != "" {
			return bookingerr.Conflict("advance payment already recorded")
		}
		if b.Status != models.BookingStatusPending {
			return bookingerr.Conflict("booking is not awaiting advance payment")
		}

		// Issue the code before the payment row so no fallible step
		// follows a store write
		if err := s.otp.Issue(b, now); err != nil {
			return err
		}

		completedAt := now
		payment, err := tx.CreatePayment(&models.Payment{
			ExternalReferenceID: externalRef,
			Type:                models.PaymentTypeAdvance,
			Status:              models.PaymentStatusCompleted,
			Amount:              b.AdvanceAmount,
			NetAmount:           b.AdvanceAmount,
			UserID:              b.UserID,
			BookingID:           b.ID,
			CompletedAt:         &completedAt,
		})
		if err != nil {
			return err
		}

		b.AdvancePaymentID = payment.ID
		b.Status = models.BookingStatusAdvancePaid

		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sendOTP(updated)
	return updated, nil
}

// ConfirmFinalPayment settles the remainder. Requires the condition
// confirmation to be approved first; moves the booking to confirmed.
func (s *BookingService) ConfirmFinalPayment(bookingID, requesterID, externalRef string) (*models.Booking, error) {
	if externalRef == "" {
		return nil, bookingerr.BadRequest("external payment reference is required")
	}

	now := s.now()
	var updated *models.Booking

	err := s.store.WithBookingLock(bookingID, func(tx storage.Store, b *models.Booking) error {
		if b.UserID != requesterID {
			return bookingerr.Forbidden("booking belongs to another user")
		}
		if b.FinalPaymentID != "" {
			return bookingerr.Conflict("final payment already recorded")
		}
		if b.Status != models.BookingStatusAdvancePaid {
			return bookingerr.Conflict("booking is not awaiting final payment")
		}
		if b.ConfirmationStatus != models.ConfirmationStatusApproved {
			return bookingerr.Conflict("condition confirmation not approved yet")
		}

		completedAt := now
		payment, err := tx.CreatePayment(&models.Payment{
			ExternalReferenceID: externalRef,
			Type:                models.PaymentTypeFinal,
			Status:              models.PaymentStatusCompleted,
			Amount:              b.RemainingAmount,
			NetAmount:           b.RemainingAmount,
			UserID:              b.UserID,
			BookingID:           b.ID,
			CompletedAt:         &completedAt,
		})
		if err != nil {
			return err
		}

		b.FinalPaymentID = payment.ID
		b.Status = models.BookingStatusConfirmed

		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// VerifyOTP checks the code the customer presents at the parking.
// Performed by staff assigned to the pickup parking.
func (s *BookingService) VerifyOTP(bookingID, staffID, code string) (*models.Booking, error) {
	staff, err := s.requireStaff(staffID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var updated *models.Booking

	err = s.store.WithBookingLock(bookingID, func(tx storage.Store, b *models.Booking) error {
		if err := s.requireParkingMatch(staff, b.PickupParkingID); err != nil {
			return err
		}
		if b.Status != models.BookingStatusAdvancePaid && b.Status != models.BookingStatusConfirmed {
			return bookingerr.Conflict("booking is not awaiting OTP verification")
		}
		if err := s.otp.Verify(b, code, staff.ID, now); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ResendOTP regenerates the pickup code. Allowed only while the booking
// sits in advance_paid; clears any previous verification.
func (s *BookingService) ResendOTP(bookingID, requesterID string) (*models.Booking, error) {
	now := s.now()
	var updated *models.Booking

	err := s.store.WithBookingLock(bookingID, func(tx storage.Store, b *models.Booking) error {
		if b.UserID != requesterID {
			return bookingerr.Forbidden("booking belongs to another user")
		}
		if b.Status != models.BookingStatusAdvancePaid {
			return bookingerr.Conflict("OTP can only be resent before final payment")
		}
		if b.OTPVerified {
			return bookingerr.Conflict("OTP already verified")
		}
		if err := s.otp.Issue(b, now); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sendOTP(updated)
	return updated, nil
}

// ConfirmPickup hands the car over. Requires both installments, a
// verified OTP and an approved condition confirmation; moves the booking
// to active and the car to rented.
func (s *BookingService) ConfirmPickup(bookingID, staffID string) (*models.Booking, error) {
	staff, err := s.requireStaff(staffID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var updated *models.Booking

	err = s.store.WithBookingLock(bookingID, func(tx storage.Store, b *models.Booking) error {
		if err := s.requireParkingMatch(staff, b.PickupParkingID); err != nil {
			return err
		}
		if b.ActualPickupDate != nil {
			return bookingerr.Conflict("booking already picked up")
		}
		if b.Status != models.BookingStatusConfirmed {
			return bookingerr.Conflict("booking is not ready for pickup")
		}
		if b.AdvancePaymentID == "" || b.FinalPaymentID == "" {
			return bookingerr.Conflict("both payment installments are required before pickup")
		}
		if !b.OTPVerified {
			return bookingerr.Conflict("pickup OTP not verified")
		}
		if b.ConfirmationStatus != models.ConfirmationStatusApproved {
			return bookingerr.Conflict("condition confirmation not approved")
		}

		pickedUpAt := now
		b.ActualPickupDate = &pickedUpAt
		b.Status = models.BookingStatusActive
		updated = b

		return tx.UpdateCarStatus(b.CarID, models.CarStatusRented)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ReturnInput carries the staff-recorded state of the returned car.
type ReturnInput struct {
	Condition string
	Images    []string
	Comments  string
}

// ConfirmReturn closes the rental. Staff at the dropoff parking records
// the car's condition; the booking completes and the car frees up.
func (s *BookingService) ConfirmReturn(bookingID, staffID string, in ReturnInput) (*models.Booking, error) {
	staff, err := s.requireStaff(staffID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var updated *models.Booking

	err = s.store.WithBookingLock(bookingID, func(tx storage.Store, b *models.Booking) error {
		if err := s.requireParkingMatch(staff, b.DropoffParkingID); err != nil {
			return err
		}
		if b.Status != models.BookingStatusActive {
			return bookingerr.Conflict("booking is not active")
		}
		if b.ActualPickupDate == nil {
			return bookingerr.Conflict("booking was never picked up")
		}

		droppedAt := now
		b.ActualDropoffDate = &droppedAt
		b.ReturnCondition = in.Condition
		b.ReturnImages = in.Images
		b.ReturnComments = in.Comments
		b.Status = models.BookingStatusCompleted
		updated = b

		return tx.UpdateCarStatus(b.CarID, models.CarStatusAvailable)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RescheduleBooking moves the rental window. Allowed while pending or
// advance_paid, bounded by the booking's reschedule budget; the window
// keeps its length so the agreed price stays valid. A new pickup time
// outside the old OTP window forces a fresh code.
func (s *BookingService) RescheduleBooking(bookingID, requesterID string, newStart, newEnd time.Time, newPickup *time.Time) (*models.Booking, error) {
	now := s.now()

	if newStart.IsZero() || newEnd.IsZero() {
		return nil, bookingerr.BadRequest("start and end dates are required")
	}
	if !newEnd.After(newStart) {
		return nil, bookingerr.BadRequest("end date must be after start date")
	}
	if newStart.Before(now) {
		return nil, bookingerr.BadRequest("start date cannot be in the past")
	}
	if newPickup != nil && (newPickup.Before(newStart) || newPickup.After(newEnd)) {
		return nil, bookingerr.BadRequest("pickup date must fall within the rental window")
	}

	var updated *models.Booking
	reissued := false

	err := s.store.WithBookingLock(bookingID, func(tx storage.Store, b *models.Booking) error {
		if b.UserID != requesterID {
			return bookingerr.Forbidden("booking belongs to another user")
		}
		if b.Status != models.BookingStatusPending && b.Status != models.BookingStatusAdvancePaid {
			return bookingerr.Conflict("booking can no longer be rescheduled")
		}
		if b.RescheduleCount >= b.MaxRescheduleCount {
			return bookingerr.Unprocessable("reschedule limit reached")
		}
		if newEnd.Sub(newStart) != b.EndDate.Sub(b.StartDate) {
			return bookingerr.BadRequest("rescheduling cannot change the rental duration")
		}

		if b.Status == models.BookingStatusAdvancePaid {
			pickup := newStart
			if newPickup != nil {
				pickup = *newPickup
			}
			if s.otp.NeedsReissue(b, pickup) {
				if err := s.otp.Issue(b, now); err != nil {
					return err
				}
				reissued = true
			}
		}

		// Shares the per-car serialization with creates: the check and
		// the window write cannot be split by a concurrent insert
		if err := tx.ReserveBookingWindow(b, newStart, newEnd); err != nil {
			return err
		}

		b.PickupDate = newPickup
		b.RescheduleCount++

		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	if reissued {
		s.sendOTP(updated)
	}
	return updated, nil
}

// DeleteBooking cancels a booking from any non-terminal state and
// releases the car.
func (s *BookingService) DeleteBooking(bookingID, requesterID string) error {
	requester, err := s.store.GetUser(requesterID)
	if err != nil {
		return err
	}

	return s.store.WithBookingLock(bookingID, func(tx storage.Store, b *models.Booking) error {
		if b.UserID != requesterID && !requester.IsStaff() {
			return bookingerr.Forbidden("booking belongs to another user")
		}
		if b.IsTerminal() {
			return bookingerr.Conflict("booking is already completed or cancelled")
		}

		wasActive := b.Status == models.BookingStatusActive
		b.Status = models.BookingStatusCancelled

		if wasActive {
			return tx.UpdateCarStatus(b.CarID, models.CarStatusAvailable)
		}
		return nil
	})
}

// GetOverdueStatus evaluates how a booking stands against its effective
// end time. Lazy: no sweeper, derived against the stored timestamps.
func (s *BookingService) GetOverdueStatus(bookingID string) (*OverdueStatus, error) {
	booking, err := s.store.GetBooking(bookingID)
	if err != nil {
		return nil, err
	}
	status := EvaluateBookingOverdue(booking, s.now())
	return &status, nil
}

// ListOverdue evaluates every active booking, for the staff timeline.
func (s *BookingService) ListOverdue() ([]OverdueStatus, error) {
	bookings, err := s.store.GetBookingsByStatus(models.BookingStatusActive)
	if err != nil {
		return nil, err
	}

	now := s.now()
	statuses := make([]OverdueStatus, 0, len(bookings))
	for _, b := range bookings {
		statuses = append(statuses, EvaluateBookingOverdue(b, now))
	}
	return statuses, nil
}

// RefundPayment records a refund against a completed payment. The status
// flips to refunded only when fully refunded; partial refunds keep the
// payment completed with the refund fields recorded.
func (s *BookingService) RefundPayment(paymentID, requesterID string, amount float64, reason string) (*models.Payment, error) {
	requester, err := s.store.GetUser(requesterID)
	if err != nil {
		return nil, err
	}
	if !requester.IsStaff() {
		return nil, bookingerr.Forbidden("only staff can record refunds")
	}
	if amount <= 0 {
		return nil, bookingerr.BadRequest("refund amount must be positive")
	}

	now := s.now()
	var updated *models.Payment

	err = s.store.WithPaymentLock(paymentID, func(p *models.Payment) error {
		if p.Status != models.PaymentStatusCompleted {
			return bookingerr.Conflict("only completed payments can be refunded")
		}
		if p.RefundAmount+amount > p.Amount+0.01 {
			return bookingerr.Unprocessable("refund exceeds payment amount")
		}

		refundedAt := now
		p.RefundAmount += amount
		p.RefundReason = reason
		p.RefundedAt = &refundedAt
		if p.RefundAmount >= p.Amount-0.01 {
			p.Status = models.PaymentStatusRefunded
		}

		copied := *p
		updated = &copied
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// helpers

func (s *BookingService) requireStaff(userID string) (*models.User, error) {
	user, err := s.store.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if !user.IsStaff() {
		return nil, bookingerr.Forbidden("staff role required")
	}
	return user, nil
}

// requireParkingMatch enforces that staff act only at their own parking.
// Admins are exempt.
func (s *BookingService) requireParkingMatch(staff *models.User, parkingID string) error {
	if staff.Role == models.RoleAdmin {
		return nil
	}
	if staff.ParkingID != parkingID {
		return bookingerr.Forbidden("staff is not assigned to this parking")
	}
	return nil
}

func (s *BookingService) sendOTP(b *models.Booking) {
	if b == nil || b.OTPCode == "" {
		return
	}
	user, err := s.store.GetUser(b.UserID)
	if err != nil {
		log.Printf("Failed to load user %s for OTP delivery: %v", b.UserID, err)
		return
	}
	msg := fmt.Sprintf("Your pickup code for booking %s is %s", b.ID, b.OTPCode)
	if b.OTPExpiresAt != nil {
		msg += fmt.Sprintf(", valid until %s", b.OTPExpiresAt.Format(time.RFC1123))
	}
	if err := s.notifier.SendSMS(user.Phone, msg); err != nil {
		log.Printf("Failed to send OTP to %s: %v", user.Phone, err)
	}
}
