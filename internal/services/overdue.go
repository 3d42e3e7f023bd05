package services

import (
	"math"
	"time"

	"github.com/drivio/drivio-backend/internal/models"
)

// Overdue status constants
const (
	OverdueStatusOnTime      = "ontime"
	OverdueStatusLate        = "late"
	OverdueStatusTopupOnTime = "topup/ontime"
	OverdueStatusTopupLate   = "topup/late"
)

// OverdueStatus describes where a booking stands relative to its
// effective end time.
type OverdueStatus struct {
	BookingID      string    `json:"booking_id,omitempty"`
	Status         string    `json:"status"`
	EffectiveEnd   time.Time `json:"effective_end"`
	HasTopup       bool      `json:"has_topup"`
	IsOverdue      bool      `json:"is_overdue"`
	OverdueHours   int       `json:"overdue_hours"`
	RequiresAction bool      `json:"requires_action"`
}

// EvaluateOverdue derives the overdue state purely from (now, endDate,
// extensionTill). Boundary-exact: now equal to the effective end is not
// overdue. Partial hours round up.
func EvaluateOverdue(now, endDate time.Time, extensionTill *time.Time) OverdueStatus {
	effectiveEnd := endDate
	hasTopup := extensionTill != nil
	if hasTopup {
		effectiveEnd = *extensionTill
	}

	isOverdue := now.After(effectiveEnd)

	overdueHours := 0
	if isOverdue {
		overdueHours = int(math.Ceil(now.Sub(effectiveEnd).Hours()))
	}

	status := OverdueStatusOnTime
	switch {
	case hasTopup && isOverdue:
		status = OverdueStatusTopupLate
	case hasTopup:
		status = OverdueStatusTopupOnTime
	case isOverdue:
		status = OverdueStatusLate
	}

	return OverdueStatus{
		Status:         status,
		EffectiveEnd:   effectiveEnd,
		HasTopup:       hasTopup,
		IsOverdue:      isOverdue,
		OverdueHours:   overdueHours,
		RequiresAction: isOverdue && overdueHours >= 1,
	}
}

// EvaluateBookingOverdue evaluates one booking and stamps its ID.
func EvaluateBookingOverdue(booking *models.Booking, now time.Time) OverdueStatus {
	status := EvaluateOverdue(now, booking.EndDate, booking.ExtensionTill)
	status.BookingID = booking.ID
	return status
}
