package services

import (
	"time"

	"github.com/drivio/drivio-backend/internal/bookingerr"
	"github.com/drivio/drivio-backend/internal/models"
	"github.com/drivio/drivio-backend/internal/storage"
)

// ApplyTopup extends an active booking's window by a purchased topup.
// The extension chains off the current effective end, never the original
// one, so concurrent applies serialize into consecutive extensions
// instead of silently overwriting each other. Each application leaves an
// append-only BookingTopup audit row.
func (s *BookingService) ApplyTopup(bookingID, requesterID, topupID, externalRef string) (*models.Booking, error) {
	if externalRef == "" {
		return nil, bookingerr.BadRequest("external payment reference is required")
	}

	topup, err := s.store.GetTopup(topupID)
	if err != nil {
		return nil, err
	}
	if !topup.Active {
		return nil, bookingerr.Unprocessable("topup is no longer offered")
	}

	now := s.now()
	var updated *models.Booking

	err = s.store.WithBookingLock(bookingID, func(tx storage.Store, b *models.Booking) error {
		if b.UserID != requesterID {
			return bookingerr.Forbidden("booking belongs to another user")
		}
		if b.Status != models.BookingStatusActive {
			return bookingerr.Conflict("topups apply only to active bookings")
		}

		originalEnd := b.EffectiveEnd()
		newEnd := originalEnd.Add(time.Duration(topup.DurationHours) * time.Hour)

		completedAt := now
		if _, err := tx.CreatePayment(&models.Payment{
			ExternalReferenceID: externalRef,
			Type:                models.PaymentTypeTopup,
			Status:              models.PaymentStatusCompleted,
			Amount:              topup.Price,
			NetAmount:           topup.Price,
			UserID:              b.UserID,
			BookingID:           b.ID,
			CompletedAt:         &completedAt,
		}); err != nil {
			return err
		}

		if _, err := tx.CreateBookingTopup(&models.BookingTopup{
			BookingID:          b.ID,
			TopupID:            topup.ID,
			OriginalEnd:        originalEnd,
			NewEnd:             newEnd,
			Amount:             topup.Price,
			PaymentReferenceID: externalRef,
		}); err != nil {
			return err
		}

		b.EndDate = newEnd
		b.ExtensionTill = &newEnd
		b.ExtensionTime += topup.DurationHours
		b.ExtensionPrice += topup.Price

		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetBookingTopups lists the audit trail of applied extensions.
func (s *BookingService) GetBookingTopups(bookingID string) ([]*models.BookingTopup, error) {
	return s.store.GetBookingTopups(bookingID)
}

// ListTopups lists the purchasable duration templates.
func (s *BookingService) ListTopups() ([]*models.Topup, error) {
	return s.store.ListActiveTopups()
}
