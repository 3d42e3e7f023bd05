package models

import "time"

// Topup is a purchasable duration template ("6 extra hours for 400").
type Topup struct {
	ID            string  `json:"id" gorm:"primaryKey"`
	Name          string  `json:"name"`
	DurationHours int     `json:"duration_hours"`
	Price         float64 `json:"price"`
	Active        bool    `json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BookingTopup is the append-only audit record of one topup applied to a
// booking. It captures both ends of the extension, not a mutable pointer.
type BookingTopup struct {
	ID        string `json:"id" gorm:"primaryKey"`
	BookingID string `json:"booking_id" gorm:"index;not null"`
	TopupID   string `json:"topup_id" gorm:"not null"`

	OriginalEnd time.Time `json:"original_end"`
	NewEnd      time.Time `json:"new_end"`
	Amount      float64   `json:"amount"`

	PaymentReferenceID string `json:"payment_reference_id"`

	CreatedAt time.Time `json:"created_at"`
}
