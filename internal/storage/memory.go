package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/drivio/drivio-backend/internal/bookingerr"
	"github.com/drivio/drivio-backend/internal/models"
	"github.com/drivio/drivio-backend/internal/utils"
)

// MemoryStore holds all data in memory. Used for tests and local
// development (USE_MEMORY_STORE=true); not for production.
type MemoryStore struct {
	users         map[string]*models.User
	cars          map[string]*models.Car
	parkings      map[string]*models.Parking
	coupons       map[string]*models.Coupon
	bookings      map[string]*models.Booking
	payments      map[string]*models.Payment
	topups        map[string]*models.Topup
	bookingTopups map[string][]*models.BookingTopup

	// Mutexes for thread safety
	userMu    sync.RWMutex
	carMu     sync.RWMutex
	parkingMu sync.RWMutex
	couponMu  sync.RWMutex
	bookingMu sync.RWMutex
	paymentMu sync.RWMutex
	topupMu   sync.RWMutex

	// Per-row locks backing WithBookingLock / WithPaymentLock
	lockMu   sync.Mutex
	rowLocks map[string]*sync.Mutex

	bookingCounter int
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*models.User),
		cars:          make(map[string]*models.Car),
		parkings:      make(map[string]*models.Parking),
		coupons:       make(map[string]*models.Coupon),
		bookings:      make(map[string]*models.Booking),
		payments:      make(map[string]*models.Payment),
		topups:        make(map[string]*models.Topup),
		bookingTopups: make(map[string][]*models.BookingTopup),
		rowLocks:      make(map[string]*sync.Mutex),
	}
}

func (m *MemoryStore) rowLock(key string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	l, ok := m.rowLocks[key]
	if !ok {
		l = &sync.Mutex{}
		m.rowLocks[key] = l
	}
	return l
}

// User operations

func (m *MemoryStore) CreateUser(user *models.User) (*models.User, error) {
	m.userMu.Lock()
	defer m.userMu.Unlock()

	if user.ID == "" {
		user.ID = utils.GenerateSecureID("USR")
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	m.users[user.ID] = user
	return user, nil
}

func (m *MemoryStore) GetUser(id string) (*models.User, error) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	user, exists := m.users[id]
	if !exists {
		return nil, bookingerr.NotFound("user not found")
	}
	return user, nil
}

func (m *MemoryStore) GetUserByPhone(phone string) (*models.User, error) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	for _, u := range m.users {
		if u.Phone == phone {
			return u, nil
		}
	}
	return nil, bookingerr.NotFound("user not found")
}

// Car operations

func (m *MemoryStore) CreateCar(car *models.Car) (*models.Car, error) {
	m.carMu.Lock()
	defer m.carMu.Unlock()

	if car.ID == "" {
		car.ID = utils.GenerateSecureID("CAR")
	}
	if car.Status == "" {
		car.Status = models.CarStatusAvailable
	}
	car.CreatedAt = time.Now()
	car.UpdatedAt = time.Now()
	m.cars[car.ID] = car
	return car, nil
}

func (m *MemoryStore) GetCar(id string) (*models.Car, error) {
	m.carMu.RLock()
	defer m.carMu.RUnlock()

	car, exists := m.cars[id]
	if !exists {
		return nil, bookingerr.NotFound("car not found")
	}
	return car, nil
}

func (m *MemoryStore) GetCarsByParking(parkingID string) ([]*models.Car, error) {
	m.carMu.RLock()
	defer m.carMu.RUnlock()

	var cars []*models.Car
	for _, car := range m.cars {
		if car.ParkingID == parkingID {
			cars = append(cars, car)
		}
	}
	return cars, nil
}

func (m *MemoryStore) UpdateCarStatus(id string, status string) error {
	m.carMu.Lock()
	defer m.carMu.Unlock()

	car, exists := m.cars[id]
	if !exists {
		return bookingerr.NotFound("car not found")
	}
	car.Status = status
	car.UpdatedAt = time.Now()
	return nil
}

// Parking operations

func (m *MemoryStore) CreateParking(parking *models.Parking) (*models.Parking, error) {
	m.parkingMu.Lock()
	defer m.parkingMu.Unlock()

	if parking.ID == "" {
		parking.ID = utils.GenerateSecureID("PKG")
	}
	parking.CreatedAt = time.Now()
	parking.UpdatedAt = time.Now()
	m.parkings[parking.ID] = parking
	return parking, nil
}

func (m *MemoryStore) GetParking(id string) (*models.Parking, error) {
	m.parkingMu.RLock()
	defer m.parkingMu.RUnlock()

	parking, exists := m.parkings[id]
	if !exists {
		return nil, bookingerr.NotFound("parking not found")
	}
	return parking, nil
}

// Coupon operations

func (m *MemoryStore) CreateCoupon(coupon *models.Coupon) (*models.Coupon, error) {
	m.couponMu.Lock()
	defer m.couponMu.Unlock()

	if coupon.ID == "" {
		coupon.ID = utils.GenerateSecureID("CPN")
	}
	coupon.CreatedAt = time.Now()
	coupon.UpdatedAt = time.Now()
	m.coupons[coupon.ID] = coupon
	return coupon, nil
}

func (m *MemoryStore) GetCouponByCode(code string) (*models.Coupon, error) {
	m.couponMu.RLock()
	defer m.couponMu.RUnlock()

	for _, c := range m.coupons {
		if c.Code == code {
			return c, nil
		}
	}
	return nil, bookingerr.NotFound("coupon not found")
}

func (m *MemoryStore) RedeemCoupon(id string) error {
	m.couponMu.Lock()
	defer m.couponMu.Unlock()

	coupon, exists := m.coupons[id]
	if !exists {
		return bookingerr.NotFound("coupon not found")
	}
	if coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit {
		return bookingerr.Unprocessable("coupon usage limit exhausted")
	}
	coupon.UsedCount++
	coupon.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) ReleaseCouponRedemption(id string) error {
	m.couponMu.Lock()
	defer m.couponMu.Unlock()

	coupon, exists := m.coupons[id]
	if !exists {
		return bookingerr.NotFound("coupon not found")
	}
	if coupon.UsedCount > 0 {
		coupon.UsedCount--
		coupon.UpdatedAt = time.Now()
	}
	return nil
}

func (m *MemoryStore) CountCouponRedemptions(couponID, userID string) (int, error) {
	m.bookingMu.RLock()
	defer m.bookingMu.RUnlock()

	count := 0
	for _, b := range m.bookings {
		if b.CouponID == couponID && b.UserID == userID && b.Status != models.BookingStatusCancelled {
			count++
		}
	}
	return count, nil
}

// Booking operations

func overlaps(b *models.Booking, start, end time.Time) bool {
	return b.StartDate.Before(end) && b.EndDate.After(start)
}

// CreateBookingIfAvailable checks for overlapping non-cancelled bookings
// and inserts under one lock, so two concurrent requests for the same
// slot cannot both pass the check.
func (m *MemoryStore) CreateBookingIfAvailable(booking *models.Booking) (*models.Booking, error) {
	m.bookingMu.Lock()
	defer m.bookingMu.Unlock()

	for _, existing := range m.bookings {
		if existing.CarID != booking.CarID || existing.Status == models.BookingStatusCancelled {
			continue
		}
		if overlaps(existing, booking.StartDate, booking.EndDate) {
			return nil, bookingerr.Conflict("car already booked for the requested window")
		}
	}

	if booking.ID == "" {
		m.bookingCounter++
		booking.ID = fmt.Sprintf("BKG%05d", m.bookingCounter)
	}
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = time.Now()
	m.bookings[booking.ID] = booking.Clone()
	return booking, nil
}

// ReserveBookingWindow re-checks the new window and commits it to the
// stored booking under the same mutex CreateBookingIfAvailable holds, so
// a concurrent create cannot land between check and write. The caller's
// copy is updated too; WithBookingLock's write-back then repeats the same
// window. Callers must hold the booking's row lock.
func (m *MemoryStore) ReserveBookingWindow(booking *models.Booking, newStart, newEnd time.Time) error {
	m.bookingMu.Lock()
	defer m.bookingMu.Unlock()

	for _, existing := range m.bookings {
		if existing.CarID != booking.CarID || existing.ID == booking.ID ||
			existing.Status == models.BookingStatusCancelled {
			continue
		}
		if overlaps(existing, newStart, newEnd) {
			return bookingerr.Conflict("car already booked for the requested window")
		}
	}

	if stored, exists := m.bookings[booking.ID]; exists {
		stored.StartDate = newStart
		stored.EndDate = newEnd
		stored.UpdatedAt = time.Now()
	}
	booking.StartDate = newStart
	booking.EndDate = newEnd
	return nil
}

func (m *MemoryStore) GetBooking(id string) (*models.Booking, error) {
	m.bookingMu.RLock()
	defer m.bookingMu.RUnlock()

	booking, exists := m.bookings[id]
	if !exists {
		return nil, bookingerr.NotFound("booking not found")
	}
	return booking.Clone(), nil
}

func (m *MemoryStore) GetBookingsByUser(userID string) ([]*models.Booking, error) {
	m.bookingMu.RLock()
	defer m.bookingMu.RUnlock()

	var bookings []*models.Booking
	for _, b := range m.bookings {
		if b.UserID == userID {
			bookings = append(bookings, b.Clone())
		}
	}
	return bookings, nil
}

func (m *MemoryStore) GetBookingsByCar(carID string) ([]*models.Booking, error) {
	m.bookingMu.RLock()
	defer m.bookingMu.RUnlock()

	var bookings []*models.Booking
	for _, b := range m.bookings {
		if b.CarID == carID {
			bookings = append(bookings, b.Clone())
		}
	}
	return bookings, nil
}

func (m *MemoryStore) GetBookingsByStatus(status string) ([]*models.Booking, error) {
	m.bookingMu.RLock()
	defer m.bookingMu.RUnlock()

	var bookings []*models.Booking
	for _, b := range m.bookings {
		if b.Status == status {
			bookings = append(bookings, b.Clone())
		}
	}
	return bookings, nil
}

func (m *MemoryStore) HasOverlap(carID string, start, end time.Time, excludeBookingID string) (bool, error) {
	m.bookingMu.RLock()
	defer m.bookingMu.RUnlock()

	for _, b := range m.bookings {
		if b.CarID != carID || b.ID == excludeBookingID || b.Status == models.BookingStatusCancelled {
			continue
		}
		if overlaps(b, start, end) {
			return true, nil
		}
	}
	return false, nil
}

// WithBookingLock serializes mutations of one booking. fn gets a private
// copy; the copy is written back only when fn succeeds.
func (m *MemoryStore) WithBookingLock(id string, fn func(tx Store, booking *models.Booking) error) error {
	lock := m.rowLock("booking:" + id)
	lock.Lock()
	defer lock.Unlock()

	m.bookingMu.RLock()
	stored, exists := m.bookings[id]
	var booking *models.Booking
	if exists {
		booking = stored.Clone()
	}
	m.bookingMu.RUnlock()

	if !exists {
		return bookingerr.NotFound("booking not found")
	}

	if err := fn(m, booking); err != nil {
		return err
	}

	booking.UpdatedAt = time.Now()
	m.bookingMu.Lock()
	m.bookings[id] = booking
	m.bookingMu.Unlock()
	return nil
}

// Payment operations

func (m *MemoryStore) CreatePayment(payment *models.Payment) (*models.Payment, error) {
	m.paymentMu.Lock()
	defer m.paymentMu.Unlock()

	if payment.ID == "" {
		payment.ID = utils.GeneratePaymentID()
	}
	payment.CreatedAt = time.Now()
	payment.UpdatedAt = time.Now()
	m.payments[payment.ID] = payment
	return payment, nil
}

func (m *MemoryStore) GetPayment(id string) (*models.Payment, error) {
	m.paymentMu.RLock()
	defer m.paymentMu.RUnlock()

	payment, exists := m.payments[id]
	if !exists {
		return nil, bookingerr.NotFound("payment not found")
	}
	p := *payment
	return &p, nil
}

func (m *MemoryStore) GetPaymentsByBooking(bookingID string) ([]*models.Payment, error) {
	m.paymentMu.RLock()
	defer m.paymentMu.RUnlock()

	var payments []*models.Payment
	for _, payment := range m.payments {
		if payment.BookingID == bookingID {
			p := *payment
			payments = append(payments, &p)
		}
	}
	return payments, nil
}

func (m *MemoryStore) WithPaymentLock(id string, fn func(payment *models.Payment) error) error {
	lock := m.rowLock("payment:" + id)
	lock.Lock()
	defer lock.Unlock()

	m.paymentMu.RLock()
	stored, exists := m.payments[id]
	var payment models.Payment
	if exists {
		payment = *stored
	}
	m.paymentMu.RUnlock()

	if !exists {
		return bookingerr.NotFound("payment not found")
	}

	if err := fn(&payment); err != nil {
		return err
	}

	payment.UpdatedAt = time.Now()
	m.paymentMu.Lock()
	m.payments[id] = &payment
	m.paymentMu.Unlock()
	return nil
}

// Topup operations

func (m *MemoryStore) CreateTopup(topup *models.Topup) (*models.Topup, error) {
	m.topupMu.Lock()
	defer m.topupMu.Unlock()

	if topup.ID == "" {
		topup.ID = utils.GenerateSecureID("TOP")
	}
	topup.CreatedAt = time.Now()
	topup.UpdatedAt = time.Now()
	m.topups[topup.ID] = topup
	return topup, nil
}

func (m *MemoryStore) GetTopup(id string) (*models.Topup, error) {
	m.topupMu.RLock()
	defer m.topupMu.RUnlock()

	topup, exists := m.topups[id]
	if !exists {
		return nil, bookingerr.NotFound("topup not found")
	}
	return topup, nil
}

func (m *MemoryStore) ListActiveTopups() ([]*models.Topup, error) {
	m.topupMu.RLock()
	defer m.topupMu.RUnlock()

	var topups []*models.Topup
	for _, t := range m.topups {
		if t.Active {
			topups = append(topups, t)
		}
	}
	return topups, nil
}

func (m *MemoryStore) CreateBookingTopup(bt *models.BookingTopup) (*models.BookingTopup, error) {
	m.topupMu.Lock()
	defer m.topupMu.Unlock()

	if bt.ID == "" {
		bt.ID = utils.GenerateSecureID("BTU")
	}
	bt.CreatedAt = time.Now()
	m.bookingTopups[bt.BookingID] = append(m.bookingTopups[bt.BookingID], bt)
	return bt, nil
}

func (m *MemoryStore) GetBookingTopups(bookingID string) ([]*models.BookingTopup, error) {
	m.topupMu.RLock()
	defer m.topupMu.RUnlock()

	return append([]*models.BookingTopup(nil), m.bookingTopups[bookingID]...), nil
}
