package models

import "time"

// Coupon is a discount code applied at booking time.
type Coupon struct {
	ID   string `json:"id" gorm:"primaryKey"`
	Code string `json:"code" gorm:"uniqueIndex;not null"`

	DiscountType      string  `json:"discount_type"` // percentage, fixed
	Percentage        float64 `json:"percentage"`
	FixedAmount       float64 `json:"fixed_amount"`
	MaxDiscountAmount float64 `json:"max_discount_amount"`
	MinBookingAmount  float64 `json:"min_booking_amount"`

	UsageLimit   int `json:"usage_limit"`
	UsedCount    int `json:"used_count"`
	PerUserLimit int `json:"per_user_limit"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Active    bool      `json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Discount type constants
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)
