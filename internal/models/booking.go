package models

import "time"

// ToolItem is one piece of equipment handed over with the car (jack, spare
// wheel, charging cable). Submitted by the customer as condition evidence.
type ToolItem struct {
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

// Booking represents one rental reservation and carries every fact the
// lifecycle engine needs: pricing split, payment references, OTP state,
// staff confirmation state and the extension window.
type Booking struct {
	ID       string `json:"id" gorm:"primaryKey"`
	UserID   string `json:"user_id" gorm:"index;not null"`
	CarID    string `json:"car_id" gorm:"index;not null"`
	CouponID string `json:"coupon_id,omitempty"`

	// Reserved window. EndDate moves forward when topups are applied;
	// the original end survives in the BookingTopup audit rows.
	StartDate time.Time `json:"start_date" gorm:"not null"`
	EndDate   time.Time `json:"end_date" gorm:"not null"`

	PickupDate        *time.Time `json:"pickup_date"`
	ActualPickupDate  *time.Time `json:"actual_pickup_date"`
	ActualDropoffDate *time.Time `json:"actual_dropoff_date"`

	// Pricing
	BasePrice       float64 `json:"base_price"`
	InsuranceAmount float64 `json:"insurance_amount"`
	DeliveryCharges float64 `json:"delivery_charges"`
	DiscountAmount  float64 `json:"discount_amount"`
	TotalPrice      float64 `json:"total_price"`
	AdvanceAmount   float64 `json:"advance_amount"`
	RemainingAmount float64 `json:"remaining_amount"`

	// Extension facts (additive, audit rows in BookingTopup)
	ExtensionPrice float64    `json:"extension_price"`
	ExtensionTill  *time.Time `json:"extension_till"`
	ExtensionTime  int        `json:"extension_time"` // total hours added

	Status             string `json:"status" gorm:"index;not null"`
	ConfirmationStatus string `json:"confirmation_status" gorm:"not null"`

	// Foreign keys into Payment. Payment rows are the source of truth for
	// paid/unpaid state; the booking never carries a duplicated flag.
	AdvancePaymentID string `json:"advance_payment_id,omitempty"`
	FinalPaymentID   string `json:"final_payment_id,omitempty"`

	// Condition evidence submitted by the customer
	CarConditionImages []string   `json:"car_condition_images" gorm:"serializer:json"`
	ToolImages         []string   `json:"tool_images" gorm:"serializer:json"`
	Tools              []ToolItem `json:"tools" gorm:"serializer:json"`
	UserConfirmed      bool       `json:"user_confirmed"`
	UserConfirmedAt    *time.Time `json:"user_confirmed_at"`

	// Staff (PIC) approval of the condition evidence
	PicApproved   bool       `json:"pic_approved"`
	PicApprovedAt *time.Time `json:"pic_approved_at"`
	PicApprovedBy string     `json:"pic_approved_by,omitempty"`
	PicComments   string     `json:"pic_comments,omitempty"`

	// Pickup OTP
	OTPCode       string     `json:"-"` // hidden in JSON, staff verifies in person
	OTPExpiresAt  *time.Time `json:"otp_expires_at"`
	OTPVerified   bool       `json:"otp_verified"`
	OTPVerifiedAt *time.Time `json:"otp_verified_at"`
	OTPVerifiedBy string     `json:"otp_verified_by,omitempty"`

	PickupParkingID  string `json:"pickup_parking_id" gorm:"index"`
	DropoffParkingID string `json:"dropoff_parking_id"`

	RescheduleCount    int `json:"reschedule_count"`
	MaxRescheduleCount int `json:"max_reschedule_count"`

	// Return facts recorded by staff
	ReturnCondition string   `json:"return_condition,omitempty"`
	ReturnImages    []string `json:"return_images" gorm:"serializer:json"`
	ReturnComments  string   `json:"return_comments,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Booking status constants
const (
	BookingStatusPending     = "pending"
	BookingStatusAdvancePaid = "advance_paid"
	BookingStatusConfirmed   = "confirmed"
	BookingStatusActive      = "active"
	BookingStatusCompleted   = "completed"
	BookingStatusCancelled   = "cancelled"
)

// Confirmation sub-state constants
const (
	ConfirmationStatusPending         = "pending"
	ConfirmationStatusPendingApproval = "pending_approval"
	ConfirmationStatusApproved        = "approved"
	ConfirmationStatusRejected        = "rejected"
)

// DefaultMaxReschedules bounds how often a customer may move a booking.
const DefaultMaxReschedules = 2

// IsTerminal reports whether the booking can never be mutated again.
func (b *Booking) IsTerminal() bool {
	return b.Status == BookingStatusCompleted || b.Status == BookingStatusCancelled
}

// EffectiveEnd is the end of the rental window including applied topups.
func (b *Booking) EffectiveEnd() time.Time {
	if b.ExtensionTill != nil {
		return *b.ExtensionTill
	}
	return b.EndDate
}

// Clone returns a deep copy so callers can mutate a booking outside the
// store without racing concurrent readers.
func (b *Booking) Clone() *Booking {
	c := *b
	c.CarConditionImages = append([]string(nil), b.CarConditionImages...)
	c.ToolImages = append([]string(nil), b.ToolImages...)
	c.Tools = append([]ToolItem(nil), b.Tools...)
	c.ReturnImages = append([]string(nil), b.ReturnImages...)
	return &c
}
