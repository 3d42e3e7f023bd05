package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/drivio/drivio-backend/internal/bookingerr"
	"github.com/drivio/drivio-backend/internal/models"
	"github.com/drivio/drivio-backend/internal/utils"
)

// DatabaseStore is the PostgreSQL-backed store. Race-sensitive operations
// (overlap check + insert, per-booking transitions, refunds) run inside a
// transaction with row-level locks.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a store backed by the given GORM connection.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func notFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return bookingerr.NotFound(msg)
	}
	return err
}

// User operations

func (s *DatabaseStore) CreateUser(user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = utils.GenerateSecureID("USR")
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (s *DatabaseStore) GetUser(id string) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "user not found")
	}
	return &user, nil
}

func (s *DatabaseStore) GetUserByPhone(phone string) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "phone = ?", phone).Error; err != nil {
		return nil, notFound(err, "user not found")
	}
	return &user, nil
}

// Car operations

func (s *DatabaseStore) CreateCar(car *models.Car) (*models.Car, error) {
	if car.ID == "" {
		car.ID = utils.GenerateSecureID("CAR")
	}
	if car.Status == "" {
		car.Status = models.CarStatusAvailable
	}
	if err := s.db.Create(car).Error; err != nil {
		return nil, err
	}
	return car, nil
}

func (s *DatabaseStore) GetCar(id string) (*models.Car, error) {
	var car models.Car
	if err := s.db.First(&car, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "car not found")
	}
	return &car, nil
}

func (s *DatabaseStore) GetCarsByParking(parkingID string) ([]*models.Car, error) {
	var cars []*models.Car
	if err := s.db.Where("parking_id = ?", parkingID).Find(&cars).Error; err != nil {
		return nil, err
	}
	return cars, nil
}

func (s *DatabaseStore) UpdateCarStatus(id string, status string) error {
	res := s.db.Model(&models.Car{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return bookingerr.NotFound("car not found")
	}
	return nil
}

// Parking operations

func (s *DatabaseStore) CreateParking(parking *models.Parking) (*models.Parking, error) {
	if parking.ID == "" {
		parking.ID = utils.GenerateSecureID("PKG")
	}
	if err := s.db.Create(parking).Error; err != nil {
		return nil, err
	}
	return parking, nil
}

func (s *DatabaseStore) GetParking(id string) (*models.Parking, error) {
	var parking models.Parking
	if err := s.db.First(&parking, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "parking not found")
	}
	return &parking, nil
}

// Coupon operations

func (s *DatabaseStore) CreateCoupon(coupon *models.Coupon) (*models.Coupon, error) {
	if coupon.ID == "" {
		coupon.ID = utils.GenerateSecureID("CPN")
	}
	if err := s.db.Create(coupon).Error; err != nil {
		return nil, err
	}
	return coupon, nil
}

func (s *DatabaseStore) GetCouponByCode(code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := s.db.First(&coupon, "code = ?", code).Error; err != nil {
		return nil, notFound(err, "coupon not found")
	}
	return &coupon, nil
}

func (s *DatabaseStore) RedeemCoupon(id string) error {
	res := s.db.Model(&models.Coupon{}).
		Where("id = ? AND (usage_limit = 0 OR used_count < usage_limit)", id).
		Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var coupon models.Coupon
		if err := s.db.First(&coupon, "id = ?", id).Error; err != nil {
			return notFound(err, "coupon not found")
		}
		return bookingerr.Unprocessable("coupon usage limit exhausted")
	}
	return nil
}

func (s *DatabaseStore) ReleaseCouponRedemption(id string) error {
	res := s.db.Model(&models.Coupon{}).
		Where("id = ? AND used_count > 0", id).
		Update("used_count", gorm.Expr("used_count - 1"))
	if res.Error != nil {
		return res.Error
	}
	return nil
}

func (s *DatabaseStore) CountCouponRedemptions(couponID, userID string) (int, error) {
	var count int64
	err := s.db.Model(&models.Booking{}).
		Where("coupon_id = ? AND user_id = ? AND status <> ?",
			couponID, userID, models.BookingStatusCancelled).
		Count(&count).Error
	return int(count), err
}

// Booking operations

// CreateBookingIfAvailable locks the car row, re-checks for overlapping
// non-cancelled bookings and inserts, all in one transaction. Concurrent
// creates for the same car serialize on the car row lock.
func (s *DatabaseStore) CreateBookingIfAvailable(booking *models.Booking) (*models.Booking, error) {
	if booking.ID == "" {
		booking.ID = utils.GenerateSecureID("BKG")
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var car models.Car
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&car, "id = ?", booking.CarID).Error; err != nil {
			return notFound(err, "car not found")
		}

		var count int64
		if err := tx.Model(&models.Booking{}).
			Where("car_id = ? AND status <> ? AND start_date < ? AND end_date > ?",
				booking.CarID, models.BookingStatusCancelled,
				booking.EndDate, booking.StartDate).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return bookingerr.Conflict("car already booked for the requested window")
		}

		return tx.Create(booking).Error
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// ReserveBookingWindow locks the car row the way CreateBookingIfAvailable
// does before re-checking the new window, so concurrent creates for the
// same car serialize against it. Called on the transaction-bound store
// inside WithBookingLock, the car lock is held until that transaction
// commits the moved window.
func (s *DatabaseStore) ReserveBookingWindow(booking *models.Booking, newStart, newEnd time.Time) error {
	var car models.Car
	if err := s.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&car, "id = ?", booking.CarID).Error; err != nil {
		return notFound(err, "car not found")
	}

	var count int64
	if err := s.db.Model(&models.Booking{}).
		Where("car_id = ? AND id <> ? AND status <> ? AND start_date < ? AND end_date > ?",
			booking.CarID, booking.ID, models.BookingStatusCancelled,
			newEnd, newStart).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return bookingerr.Conflict("car already booked for the requested window")
	}

	booking.StartDate = newStart
	booking.EndDate = newEnd
	return nil
}

func (s *DatabaseStore) GetBooking(id string) (*models.Booking, error) {
	var booking models.Booking
	if err := s.db.First(&booking, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "booking not found")
	}
	return &booking, nil
}

func (s *DatabaseStore) GetBookingsByUser(userID string) ([]*models.Booking, error) {
	var bookings []*models.Booking
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *DatabaseStore) GetBookingsByCar(carID string) ([]*models.Booking, error) {
	var bookings []*models.Booking
	err := s.db.Where("car_id = ?", carID).
		Order("start_date").Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *DatabaseStore) GetBookingsByStatus(status string) ([]*models.Booking, error) {
	var bookings []*models.Booking
	if err := s.db.Where("status = ?", status).Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *DatabaseStore) HasOverlap(carID string, start, end time.Time, excludeBookingID string) (bool, error) {
	var count int64
	q := s.db.Model(&models.Booking{}).
		Where("car_id = ? AND status <> ? AND start_date < ? AND end_date > ?",
			carID, models.BookingStatusCancelled, end, start)
	if excludeBookingID != "" {
		q = q.Where("id <> ?", excludeBookingID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// WithBookingLock selects the booking row FOR UPDATE and runs fn inside
// the same transaction, so concurrent transitions on one booking
// serialize and partial writes roll back.
func (s *DatabaseStore) WithBookingLock(id string, fn func(tx Store, booking *models.Booking) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var booking models.Booking
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&booking, "id = ?", id).Error; err != nil {
			return notFound(err, "booking not found")
		}

		if err := fn(&DatabaseStore{db: tx}, &booking); err != nil {
			return err
		}

		return tx.Save(&booking).Error
	})
}

// Payment operations

func (s *DatabaseStore) CreatePayment(payment *models.Payment) (*models.Payment, error) {
	if payment.ID == "" {
		payment.ID = utils.GeneratePaymentID()
	}
	if err := s.db.Create(payment).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *DatabaseStore) GetPayment(id string) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.First(&payment, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "payment not found")
	}
	return &payment, nil
}

func (s *DatabaseStore) GetPaymentsByBooking(bookingID string) ([]*models.Payment, error) {
	var payments []*models.Payment
	err := s.db.Where("booking_id = ?", bookingID).
		Order("created_at").Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *DatabaseStore) WithPaymentLock(id string, fn func(payment *models.Payment) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&payment, "id = ?", id).Error; err != nil {
			return notFound(err, "payment not found")
		}

		if err := fn(&payment); err != nil {
			return err
		}

		return tx.Save(&payment).Error
	})
}

// Topup operations

func (s *DatabaseStore) CreateTopup(topup *models.Topup) (*models.Topup, error) {
	if topup.ID == "" {
		topup.ID = utils.GenerateSecureID("TOP")
	}
	if err := s.db.Create(topup).Error; err != nil {
		return nil, err
	}
	return topup, nil
}

func (s *DatabaseStore) GetTopup(id string) (*models.Topup, error) {
	var topup models.Topup
	if err := s.db.First(&topup, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "topup not found")
	}
	return &topup, nil
}

func (s *DatabaseStore) ListActiveTopups() ([]*models.Topup, error) {
	var topups []*models.Topup
	if err := s.db.Where("active = ?", true).Find(&topups).Error; err != nil {
		return nil, err
	}
	return topups, nil
}

func (s *DatabaseStore) CreateBookingTopup(bt *models.BookingTopup) (*models.BookingTopup, error) {
	if bt.ID == "" {
		bt.ID = utils.GenerateSecureID("BTU")
	}
	if err := s.db.Create(bt).Error; err != nil {
		return nil, err
	}
	return bt, nil
}

func (s *DatabaseStore) GetBookingTopups(bookingID string) ([]*models.BookingTopup, error) {
	var topups []*models.BookingTopup
	err := s.db.Where("booking_id = ?", bookingID).
		Order("created_at").Find(&topups).Error
	if err != nil {
		return nil, err
	}
	return topups, nil
}
