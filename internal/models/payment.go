package models

import "time"

// Payment is one money fact against a booking. It is the single source of
// truth for paid/unpaid state; bookings reference payments by ID only.
type Payment struct {
	ID string `json:"id" gorm:"primaryKey"`

	// Opaque reference supplied by the caller after the gateway confirmed
	// the charge out of band. The core never talks to a gateway.
	ExternalReferenceID string `json:"external_reference_id" gorm:"index"`

	Type   string `json:"type" gorm:"not null"`   // advance, final, topup, refund, penalty
	Status string `json:"status" gorm:"not null"` // pending, processing, completed, failed, cancelled, refunded

	Amount    float64 `json:"amount"`
	NetAmount float64 `json:"net_amount"`

	UserID    string `json:"user_id" gorm:"index"`
	BookingID string `json:"booking_id" gorm:"index"`

	RefundAmount float64    `json:"refund_amount"`
	RefundReason string     `json:"refund_reason,omitempty"`
	RefundedAt   *time.Time `json:"refunded_at"`

	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Payment type constants
const (
	PaymentTypeAdvance = "advance"
	PaymentTypeFinal   = "final"
	PaymentTypeTopup   = "topup"
	PaymentTypeRefund  = "refund"
	PaymentTypePenalty = "penalty"
)

// Payment status constants
const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	PaymentStatusCancelled  = "cancelled"
	PaymentStatusRefunded   = "refunded"
)
