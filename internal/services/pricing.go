package services

import (
	"math"
	"time"

	"github.com/drivio/drivio-backend/internal/bookingerr"
	"github.com/drivio/drivio-backend/internal/models"
)

// AdvanceShare is the fraction of the total collected up front to reserve
// the booking; the remainder settles before handover.
const AdvanceShare = 0.3

// Quote is the price breakdown for one rental window.
type Quote struct {
	Days            int     `json:"days"`
	BasePrice       float64 `json:"base_price"`
	InsuranceAmount float64 `json:"insurance_amount"`
	DeliveryCharges float64 `json:"delivery_charges"`
	DiscountAmount  float64 `json:"discount_amount"`
	TotalPrice      float64 `json:"total_price"`
	AdvanceAmount   float64 `json:"advance_amount"`
	RemainingAmount float64 `json:"remaining_amount"`
}

// PricingService computes the base/insurance/discount/total/advance split.
type PricingService struct{}

func NewPricingService() *PricingService {
	return &PricingService{}
}

// Quote prices a rental of car from start to end. coupon may be nil;
// userRedemptions is how many non-cancelled bookings of this user already
// used it.
func (s *PricingService) Quote(car *models.Car, coupon *models.Coupon, userRedemptions int, start, end, now time.Time) (*Quote, error) {
	if !end.After(start) {
		return nil, bookingerr.BadRequest("end date must be after start date")
	}

	// Partial days bill as full days
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	if days < 1 {
		days = 1
	}

	basePrice := car.DailyRate * float64(days)
	insurance := car.InsuranceAmount

	var discount float64
	if coupon != nil {
		if err := s.checkCouponEligibility(coupon, userRedemptions, basePrice, now); err != nil {
			return nil, err
		}
		discount = couponDiscount(coupon, basePrice)
	}

	total := round2(basePrice + insurance + car.DeliveryCharges - discount)
	advance := round2(total * AdvanceShare)

	return &Quote{
		Days:            days,
		BasePrice:       round2(basePrice),
		InsuranceAmount: round2(insurance),
		DeliveryCharges: round2(car.DeliveryCharges),
		DiscountAmount:  round2(discount),
		TotalPrice:      total,
		AdvanceAmount:   advance,
		RemainingAmount: round2(total - advance),
	}, nil
}

func (s *PricingService) checkCouponEligibility(coupon *models.Coupon, userRedemptions int, basePrice float64, now time.Time) error {
	if !coupon.Active {
		return bookingerr.Unprocessable("coupon is not active")
	}
	if now.Before(coupon.StartDate) || now.After(coupon.EndDate) {
		return bookingerr.Unprocessable("coupon is outside its validity window")
	}
	if coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit {
		return bookingerr.Unprocessable("coupon usage limit exhausted")
	}
	if coupon.PerUserLimit > 0 && userRedemptions >= coupon.PerUserLimit {
		return bookingerr.Unprocessable("coupon already used the maximum number of times")
	}
	if basePrice < coupon.MinBookingAmount {
		return bookingerr.Unprocessable("booking amount below coupon minimum")
	}
	return nil
}

// couponDiscount is never negative and never exceeds the price it
// discounts.
func couponDiscount(coupon *models.Coupon, basePrice float64) float64 {
	var discount float64
	switch coupon.DiscountType {
	case models.DiscountTypePercentage:
		discount = basePrice * coupon.Percentage / 100
		if coupon.MaxDiscountAmount > 0 && discount > coupon.MaxDiscountAmount {
			discount = coupon.MaxDiscountAmount
		}
	case models.DiscountTypeFixed:
		discount = coupon.FixedAmount
	}
	if discount > basePrice {
		discount = basePrice
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
