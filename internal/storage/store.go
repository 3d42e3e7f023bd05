package storage

import (
	"time"

	"github.com/drivio/drivio-backend/internal/models"
)

// Store defines the interface for storage operations
type Store interface {
	// User operations
	CreateUser(user *models.User) (*models.User, error)
	GetUser(id string) (*models.User, error)
	GetUserByPhone(phone string) (*models.User, error)

	// Car operations
	CreateCar(car *models.Car) (*models.Car, error)
	GetCar(id string) (*models.Car, error)
	GetCarsByParking(parkingID string) ([]*models.Car, error)
	UpdateCarStatus(id string, status string) error

	// Parking operations
	CreateParking(parking *models.Parking) (*models.Parking, error)
	GetParking(id string) (*models.Parking, error)

	// Coupon operations. RedeemCoupon consumes one global use atomically,
	// failing once the usage limit is exhausted; ReleaseCouponRedemption
	// returns a use when the booking the redemption was taken for could
	// not be created.
	CreateCoupon(coupon *models.Coupon) (*models.Coupon, error)
	GetCouponByCode(code string) (*models.Coupon, error)
	RedeemCoupon(id string) error
	ReleaseCouponRedemption(id string) error
	CountCouponRedemptions(couponID, userID string) (int, error)

	// Booking operations. CreateBookingIfAvailable runs the overlap check
	// and the insert atomically; WithBookingLock serializes all mutations
	// of one booking and persists the result when fn succeeds. The Store
	// passed to fn is bound to the same transaction / lock scope.
	// ReserveBookingWindow moves an existing booking's window, sharing the
	// per-car serialization of CreateBookingIfAvailable so a concurrent
	// create cannot slip between its overlap check and the window write.
	// Call it inside WithBookingLock for the same booking.
	CreateBookingIfAvailable(booking *models.Booking) (*models.Booking, error)
	ReserveBookingWindow(booking *models.Booking, newStart, newEnd time.Time) error
	GetBooking(id string) (*models.Booking, error)
	GetBookingsByUser(userID string) ([]*models.Booking, error)
	GetBookingsByCar(carID string) ([]*models.Booking, error)
	GetBookingsByStatus(status string) ([]*models.Booking, error)
	HasOverlap(carID string, start, end time.Time, excludeBookingID string) (bool, error)
	WithBookingLock(id string, fn func(tx Store, booking *models.Booking) error) error

	// Payment operations
	CreatePayment(payment *models.Payment) (*models.Payment, error)
	GetPayment(id string) (*models.Payment, error)
	GetPaymentsByBooking(bookingID string) ([]*models.Payment, error)
	WithPaymentLock(id string, fn func(payment *models.Payment) error) error

	// Topup operations
	CreateTopup(topup *models.Topup) (*models.Topup, error)
	GetTopup(id string) (*models.Topup, error)
	ListActiveTopups() ([]*models.Topup, error)
	CreateBookingTopup(bt *models.BookingTopup) (*models.BookingTopup, error)
	GetBookingTopups(bookingID string) ([]*models.BookingTopup, error)
}
