package storage_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drivio/drivio-backend/internal/bookingerr"
	"github.com/drivio/drivio-backend/internal/models"
	"github.com/drivio/drivio-backend/internal/storage"
)

func newBooking(carID string, start, end time.Time) *models.Booking {
	return &models.Booking{
		UserID:    "USR-1",
		CarID:     carID,
		StartDate: start,
		EndDate:   end,
		Status:    models.BookingStatusPending,
	}
}

func TestCreateBookingIfAvailable(t *testing.T) {
	store := storage.NewMemoryStore()
	start := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)

	b, err := store.CreateBookingIfAvailable(newBooking("CAR-1", start, end))
	require.NoError(t, err)
	require.NotEmpty(t, b.ID)

	// Same slot, same car
	_, err = store.CreateBookingIfAvailable(newBooking("CAR-1", start, end))
	require.Equal(t, bookingerr.KindConflict, bookingerr.KindOf(err))

	// Same slot, different car
	_, err = store.CreateBookingIfAvailable(newBooking("CAR-2", start, end))
	require.NoError(t, err)
}

func TestHasOverlapBoundaries(t *testing.T) {
	store := storage.NewMemoryStore()
	start := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)
	existing, err := store.CreateBookingIfAvailable(newBooking("CAR-1", start, end))
	require.NoError(t, err)

	cases := []struct {
		name       string
		qs, qe     time.Time
		wantResult bool
	}{
		{"identical window", start, end, true},
		{"contained", start.Add(time.Hour), end.Add(-time.Hour), true},
		{"straddles start", start.Add(-time.Hour), start.Add(time.Hour), true},
		{"straddles end", end.Add(-time.Hour), end.Add(time.Hour), true},
		{"ends at start", start.Add(-24 * time.Hour), start, false},
		{"begins at end", end, end.Add(24 * time.Hour), false},
		{"entirely before", start.Add(-48 * time.Hour), start.Add(-24 * time.Hour), false},
		{"entirely after", end.Add(24 * time.Hour), end.Add(48 * time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := store.HasOverlap("CAR-1", tc.qs, tc.qe, "")
			require.NoError(t, err)
			require.Equal(t, tc.wantResult, got)
		})
	}

	// Excluding the booking itself clears the overlap
	got, err := store.HasOverlap("CAR-1", start, end, existing.ID)
	require.NoError(t, err)
	require.False(t, got)
}

func TestCancelledBookingDoesNotBlock(t *testing.T) {
	store := storage.NewMemoryStore()
	start := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)

	b, err := store.CreateBookingIfAvailable(newBooking("CAR-1", start, end))
	require.NoError(t, err)

	err = store.WithBookingLock(b.ID, func(tx storage.Store, b *models.Booking) error {
		b.Status = models.BookingStatusCancelled
		return nil
	})
	require.NoError(t, err)

	_, err = store.CreateBookingIfAvailable(newBooking("CAR-1", start, end))
	require.NoError(t, err)
}

func TestWithBookingLockDiscardsOnError(t *testing.T) {
	store := storage.NewMemoryStore()
	start := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	b, err := store.CreateBookingIfAvailable(newBooking("CAR-1", start, start.Add(24*time.Hour)))
	require.NoError(t, err)

	wantErr := bookingerr.Conflict("nope")
	err = store.WithBookingLock(b.ID, func(tx storage.Store, b *models.Booking) error {
		b.Status = models.BookingStatusActive
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	stored, err := store.GetBooking(b.ID)
	require.NoError(t, err)
	require.Equal(t, models.BookingStatusPending, stored.Status)
}

func TestWithBookingLockSerializes(t *testing.T) {
	store := storage.NewMemoryStore()
	start := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	b, err := store.CreateBookingIfAvailable(newBooking("CAR-1", start, start.Add(24*time.Hour)))
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.WithBookingLock(b.ID, func(tx storage.Store, b *models.Booking) error {
				b.RescheduleCount++
				return nil
			})
		}()
	}
	wg.Wait()

	stored, err := store.GetBooking(b.ID)
	require.NoError(t, err)
	require.Equal(t, n, stored.RescheduleCount)
}

func TestGetBookingReturnsACopy(t *testing.T) {
	store := storage.NewMemoryStore()
	start := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	booking := newBooking("CAR-1", start, start.Add(24*time.Hour))
	booking.CarConditionImages = []string{"front.jpg"}
	b, err := store.CreateBookingIfAvailable(booking)
	require.NoError(t, err)

	got, err := store.GetBooking(b.ID)
	require.NoError(t, err)
	got.Status = models.BookingStatusActive
	got.CarConditionImages[0] = "tampered.jpg"

	stored, err := store.GetBooking(b.ID)
	require.NoError(t, err)
	require.Equal(t, models.BookingStatusPending, stored.Status)
	require.Equal(t, "front.jpg", stored.CarConditionImages[0])
}

func TestReserveBookingWindow(t *testing.T) {
	store := storage.NewMemoryStore()
	start := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)
	b, err := store.CreateBookingIfAvailable(newBooking("CAR-1", start, end))
	require.NoError(t, err)

	// Moving into a window held by another booking is refused
	otherStart := start.Add(7 * 24 * time.Hour)
	_, err = store.CreateBookingIfAvailable(newBooking("CAR-1", otherStart, otherStart.Add(48*time.Hour)))
	require.NoError(t, err)

	err = store.WithBookingLock(b.ID, func(tx storage.Store, locked *models.Booking) error {
		return tx.ReserveBookingWindow(locked, otherStart, otherStart.Add(48*time.Hour))
	})
	require.Equal(t, bookingerr.KindConflict, bookingerr.KindOf(err))

	stored, err := store.GetBooking(b.ID)
	require.NoError(t, err)
	require.Equal(t, start, stored.StartDate)

	// A free window commits
	freeStart := start.Add(14 * 24 * time.Hour)
	err = store.WithBookingLock(b.ID, func(tx storage.Store, locked *models.Booking) error {
		return tx.ReserveBookingWindow(locked, freeStart, freeStart.Add(48*time.Hour))
	})
	require.NoError(t, err)

	stored, err = store.GetBooking(b.ID)
	require.NoError(t, err)
	require.Equal(t, freeStart, stored.StartDate)
}

func TestReserveBookingWindowSerializesAgainstCreate(t *testing.T) {
	store := storage.NewMemoryStore()
	start := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)
	b, err := store.CreateBookingIfAvailable(newBooking("CAR-1", start, end))
	require.NoError(t, err)

	newStart := start.Add(7 * 24 * time.Hour)
	newEnd := newStart.Add(48 * time.Hour)

	err = store.WithBookingLock(b.ID, func(tx storage.Store, locked *models.Booking) error {
		require.NoError(t, tx.ReserveBookingWindow(locked, newStart, newEnd))

		// A create landing after the reservation but before the lock's
		// write-back must already see the moved window
		_, cerr := store.CreateBookingIfAvailable(newBooking("CAR-1", newStart, newEnd))
		require.Equal(t, bookingerr.KindConflict, bookingerr.KindOf(cerr))

		// and the vacated slot is free
		_, cerr = store.CreateBookingIfAvailable(newBooking("CAR-1", start, end))
		require.NoError(t, cerr)
		return nil
	})
	require.NoError(t, err)

	bookings, err := store.GetBookingsByCar("CAR-1")
	require.NoError(t, err)
	for i, a := range bookings {
		for _, c := range bookings[i+1:] {
			overlapping := a.StartDate.Before(c.EndDate) && a.EndDate.After(c.StartDate)
			require.False(t, overlapping, "bookings %s and %s overlap", a.ID, c.ID)
		}
	}
}

func TestRedeemCouponAtomicLimit(t *testing.T) {
	store := storage.NewMemoryStore()
	coupon, err := store.CreateCoupon(&models.Coupon{
		Code: "LIMITED", UsageLimit: 5, Active: true,
	})
	require.NoError(t, err)

	errs := make([]error, 20)
	var wg sync.WaitGroup
	for i := 0; i < len(errs); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.RedeemCoupon(coupon.ID)
		}(i)
	}
	wg.Wait()

	redeemed := 0
	for _, err := range errs {
		if err == nil {
			redeemed++
		} else {
			require.Equal(t, bookingerr.KindUnprocessable, bookingerr.KindOf(err))
		}
	}
	require.Equal(t, 5, redeemed)

	// Releasing one use makes room for one more redemption
	require.NoError(t, store.ReleaseCouponRedemption(coupon.ID))
	require.NoError(t, store.RedeemCoupon(coupon.ID))
	require.Equal(t, bookingerr.KindUnprocessable,
		bookingerr.KindOf(store.RedeemCoupon(coupon.ID)))
}

func TestGetMissingRowsNotFound(t *testing.T) {
	store := storage.NewMemoryStore()

	_, err := store.GetBooking("BKG99999")
	require.Equal(t, bookingerr.KindNotFound, bookingerr.KindOf(err))

	_, err = store.GetUser("USR-missing")
	require.Equal(t, bookingerr.KindNotFound, bookingerr.KindOf(err))

	err = store.WithBookingLock("BKG99999", func(tx storage.Store, b *models.Booking) error { return nil })
	require.Equal(t, bookingerr.KindNotFound, bookingerr.KindOf(err))
}
