package services

import (
	"fmt"
	"time"

	"github.com/drivio/drivio-backend/internal/bookingerr"
	"github.com/drivio/drivio-backend/internal/models"
	"github.com/drivio/drivio-backend/internal/utils"
)

const (
	// PickupGrace is how long after the expected pickup time the code
	// stays valid.
	PickupGrace = 2 * time.Hour

	// MinOTPValidity floors the expiry so a code issued close to (or
	// after) the pickup time is still usable.
	MinOTPValidity = 15 * time.Minute
)

// OTPService issues and verifies the pickup handover code. All state
// lives on the booking; the service only manipulates it.
type OTPService struct{}

func NewOTPService() *OTPService {
	return &OTPService{}
}

// Issue generates a fresh 4-digit code on the booking. Expiry tracks the
// expected pickup window rather than a flat TTL: the code lasts until
// PickupGrace past the pickup time (start date when no explicit pickup
// time was given), but never less than MinOTPValidity from now.
func (s *OTPService) Issue(booking *models.Booking, now time.Time) error {
	code, err := utils.GeneratePickupOTP()
	if err != nil {
		return fmt.Errorf("failed to generate OTP: %w", err)
	}

	pickup := booking.StartDate
	if booking.PickupDate != nil {
		pickup = *booking.PickupDate
	}
	expiresAt := pickup.Add(PickupGrace)
	if floor := now.Add(MinOTPValidity); expiresAt.Before(floor) {
		expiresAt = floor
	}

	booking.OTPCode = code
	booking.OTPExpiresAt = &expiresAt
	booking.OTPVerified = false
	booking.OTPVerifiedAt = nil
	booking.OTPVerifiedBy = ""
	return nil
}

// Verify checks the presented code against the booking and records the
// verifier on success. Expired wins over mismatch: a correct code past
// expiry still fails.
func (s *OTPService) Verify(booking *models.Booking, code, verifierID string, now time.Time) error {
	if booking.OTPCode == "" || booking.OTPExpiresAt == nil {
		return bookingerr.Unprocessable("no OTP issued for this booking")
	}
	if booking.OTPVerified {
		return bookingerr.Unprocessable("OTP already verified")
	}
	if now.After(*booking.OTPExpiresAt) {
		return bookingerr.Unprocessable("OTP expired")
	}
	if code != booking.OTPCode {
		return bookingerr.Unprocessable("OTP does not match")
	}

	verifiedAt := now
	booking.OTPVerified = true
	booking.OTPVerifiedAt = &verifiedAt
	booking.OTPVerifiedBy = verifierID
	return nil
}

// NeedsReissue reports whether a rescheduled pickup falls outside the
// window the current code was issued for.
func (s *OTPService) NeedsReissue(booking *models.Booking, newPickup time.Time) bool {
	if booking.OTPCode == "" || booking.OTPExpiresAt == nil {
		return false
	}
	return newPickup.Add(PickupGrace).After(*booking.OTPExpiresAt)
}
