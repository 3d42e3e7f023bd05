package services

import (
	"log"

	"github.com/drivio/drivio-backend/internal/bookingerr"
	"github.com/drivio/drivio-backend/internal/models"
	"github.com/drivio/drivio-backend/internal/storage"
)

// Condition confirmation sub-state machine:
// pending -> pending_approval -> approved | rejected, with
// rejected -> pending_approval via resubmit. Resubmission is the sole
// recovery path from a rejection.

// ConfirmationInput is the customer's condition evidence.
type ConfirmationInput struct {
	CarConditionImages []string
	ToolImages         []string
	Tools              []models.ToolItem
}

// SubmitConfirmation records the customer's condition evidence and queues
// it for staff approval. Requires the advance payment to be recorded.
func (s *BookingService) SubmitConfirmation(bookingID, requesterID string, in ConfirmationInput) (*models.Booking, error) {
	if len(in.CarConditionImages) == 0 {
		return nil, bookingerr.BadRequest("at least one car condition image is required")
	}
	for _, tool := range in.Tools {
		if tool.Name == "" {
			return nil, bookingerr.BadRequest("every tool entry needs a name")
		}
	}

	now := s.now()
	var updated *models.Booking

	err := s.store.WithBookingLock(bookingID, func(tx storage.Store, b *models.Booking) error {
		if b.UserID != requesterID {
			return bookingerr.Forbidden("booking belongs to another user")
		}
		if b.AdvancePaymentID == "" {
			return bookingerr.Conflict("advance payment required before condition confirmation")
		}
		if b.ConfirmationStatus != models.ConfirmationStatusPending {
			return bookingerr.Conflict("condition confirmation already submitted")
		}

		confirmedAt := now
		b.CarConditionImages = in.CarConditionImages
		b.ToolImages = in.ToolImages
		b.Tools = in.Tools
		b.UserConfirmed = true
		b.UserConfirmedAt = &confirmedAt
		b.ConfirmationStatus = models.ConfirmationStatusPendingApproval

		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// PicApprove records the staff decision on the condition evidence. The
// approving staff must be assigned to the booking's pickup parking.
// Comments are stored either way and surfaced to the customer on
// rejection.
func (s *BookingService) PicApprove(bookingID, staffID string, approved bool, comments string) (*models.Booking, error) {
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
		if b.ConfirmationStatus != models.ConfirmationStatusPendingApproval {
			return bookingerr.Conflict("no condition confirmation awaiting approval")
		}

		decidedAt := now
		b.PicApproved = approved
		b.PicApprovedAt = &decidedAt
		b.PicApprovedBy = staff.ID
		b.PicComments = comments
		if approved {
			b.ConfirmationStatus = models.ConfirmationStatusApproved
		} else {
			b.ConfirmationStatus = models.ConfirmationStatusRejected
		}

		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyDecision(updated, approved)
	return updated, nil
}

// ResubmitConfirmation puts a rejected confirmation back in the approval
// queue. Only valid from rejected; clears the previous decision.
func (s *BookingService) ResubmitConfirmation(bookingID, requesterID string) (*models.Booking, error) {
	var updated *models.Booking

	err := s.store.WithBookingLock(bookingID, func(tx storage.Store, b *models.Booking) error {
		if b.UserID != requesterID {
			return bookingerr.Forbidden("booking belongs to another user")
		}
		if b.ConfirmationStatus != models.ConfirmationStatusRejected {
			return bookingerr.Conflict("only a rejected confirmation can be resubmitted")
		}

		b.PicApproved = false
		b.PicApprovedAt = nil
		b.PicApprovedBy = ""
		b.ConfirmationStatus = models.ConfirmationStatusPendingApproval

		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *BookingService) notifyDecision(b *models.Booking, approved bool) {
	if b == nil {
		return
	}
	user, err := s.store.GetUser(b.UserID)
	if err != nil {
		log.Printf("Failed to load user %s for decision delivery: %v", b.UserID, err)
		return
	}

	msg := "Your condition confirmation for booking " + b.ID + " was approved."
	if !approved {
		msg = "Your condition confirmation for booking " + b.ID + " was rejected."
		if b.PicComments != "" {
			msg += " Staff comments: " + b.PicComments
		}
	}
	if err := s.notifier.SendSMS(user.Phone, msg); err != nil {
		log.Printf("Failed to send decision to %s: %v", user.Phone, err)
	}
}
