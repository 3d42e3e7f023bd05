package services_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drivio/drivio-backend/internal/bookingerr"
	"github.com/drivio/drivio-backend/internal/models"
)

func TestApplyTopup(t *testing.T) {
	f := newFixture(t)
	b := f.toActive(t)
	originalEnd := b.EndDate

	b, err := f.svc.ApplyTopup(b.ID, f.customer.ID, f.topup.ID, "gw-top-1")
	require.NoError(t, err)

	wantEnd := originalEnd.Add(time.Duration(f.topup.DurationHours) * time.Hour)
	require.Equal(t, wantEnd, b.EndDate)
	require.NotNil(t, b.ExtensionTill)
	require.Equal(t, wantEnd, *b.ExtensionTill)
	require.Equal(t, f.topup.DurationHours, b.ExtensionTime)
	require.Equal(t, f.topup.Price, b.ExtensionPrice)

	audits, err := f.svc.GetBookingTopups(b.ID)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	require.Equal(t, originalEnd, audits[0].OriginalEnd)
	require.Equal(t, wantEnd, audits[0].NewEnd)

	payments, err := f.store.GetPaymentsByBooking(b.ID)
	require.NoError(t, err)
	var topupPayments int
	for _, p := range payments {
		if p.Type == models.PaymentTypeTopup {
			topupPayments++
			require.Equal(t, f.topup.Price, p.Amount)
		}
	}
	require.Equal(t, 1, topupPayments)
}

func TestApplyTopupOnlyOnActiveBookings(t *testing.T) {
	f := newFixture(t)
	b := f.toApproved(t)

	_, err := f.svc.ApplyTopup(b.ID, f.customer.ID, f.topup.ID, "gw-top-1")
	require.Equal(t, bookingerr.KindConflict, bookingerr.KindOf(err))
}

func TestApplyTopupGuards(t *testing.T) {
	f := newFixture(t)
	b := f.toActive(t)

	_, err := f.svc.ApplyTopup(b.ID, f.customer.ID, f.topup.ID, "")
	require.Equal(t, bookingerr.KindBadRequest, bookingerr.KindOf(err))

	_, err = f.svc.ApplyTopup(b.ID, f.other.ID, f.topup.ID, "gw-top-1")
	require.Equal(t, bookingerr.KindForbidden, bookingerr.KindOf(err))

	retired, err := f.store.CreateTopup(&models.Topup{
		Name: "retired", DurationHours: 12, Price: 700, Active: false,
	})
	require.NoError(t, err)
	_, err = f.svc.ApplyTopup(b.ID, f.customer.ID, retired.ID, "gw-top-1")
	require.Equal(t, bookingerr.KindUnprocessable, bookingerr.KindOf(err))
}

func TestConcurrentTopupsChain(t *testing.T) {
	f := newFixture(t)
	b := f.toActive(t)
	originalEnd := b.EndDate
	step := time.Duration(f.topup.DurationHours) * time.Hour

	refs := []string{"gw-top-a", "gw-top-b"}
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.ApplyTopup(b.ID, f.customer.ID, f.topup.ID, refs[i])
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	stored, err := f.store.GetBooking(b.ID)
	require.NoError(t, err)
	// Both extensions land: each chains off the end the other produced
	require.Equal(t, originalEnd.Add(2*step), stored.EndDate)
	require.Equal(t, 2*f.topup.DurationHours, stored.ExtensionTime)

	audits, err := f.svc.GetBookingTopups(b.ID)
	require.NoError(t, err)
	require.Len(t, audits, 2)
	first, second := audits[0], audits[1]
	if second.OriginalEnd.Before(first.OriginalEnd) {
		first, second = second, first
	}
	require.Equal(t, originalEnd, first.OriginalEnd)
	require.Equal(t, first.NewEnd, second.OriginalEnd)
	require.Equal(t, originalEnd.Add(2*step), second.NewEnd)
}

func TestTopupShiftsOverdueEvaluation(t *testing.T) {
	f := newFixture(t)
	b := f.toActive(t)

	b, err := f.svc.ApplyTopup(b.ID, f.customer.ID, f.topup.ID, "gw-top-1")
	require.NoError(t, err)

	// An hour past the original end but inside the extension
	f.now = b.ExtensionTill.Add(-time.Hour)
	status, err := f.svc.GetOverdueStatus(b.ID)
	require.NoError(t, err)
	require.False(t, status.IsOverdue)
	require.True(t, status.HasTopup)
}

func TestListTopupsOnlyActive(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.CreateTopup(&models.Topup{
		Name: "retired", DurationHours: 12, Price: 700, Active: false,
	})
	require.NoError(t, err)

	topups, err := f.svc.ListTopups()
	require.NoError(t, err)
	require.Len(t, topups, 1)
	require.Equal(t, f.topup.ID, topups[0].ID)
}
