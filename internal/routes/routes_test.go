package routes_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/drivio/drivio-backend/internal/middleware"
	"github.com/drivio/drivio-backend/internal/models"
	"github.com/drivio/drivio-backend/internal/routes"
	"github.com/drivio/drivio-backend/internal/services"
	"github.com/drivio/drivio-backend/internal/storage"
)

const testSecret = "test-secret"

type apiFixture struct {
	app      *fiber.App
	store    *storage.MemoryStore
	now      time.Time
	customer *models.User
	staff    *models.User
	car      *models.Car
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	t.Setenv("JWT_SECRET", testSecret)

	f := &apiFixture{
		store: storage.NewMemoryStore(),
		now:   time.Date(2025, 8, 20, 12, 0, 0, 0, time.UTC),
	}

	parking, err := f.store.CreateParking(&models.Parking{Name: "Central Lot"})
	require.NoError(t, err)
	f.car, err = f.store.CreateCar(&models.Car{
		Name: "Swift", DailyRate: 1000, InsuranceAmount: 100, ParkingID: parking.ID,
	})
	require.NoError(t, err)
	f.customer, err = f.store.CreateUser(&models.User{
		Name: "Asha", Phone: "+911000000001", Role: models.RoleCustomer, Verified: true,
	})
	require.NoError(t, err)
	f.staff, err = f.store.CreateUser(&models.User{
		Name: "Meera", Phone: "+911000000003", Role: models.RoleStaff,
		ParkingID: parking.ID, Verified: true,
	})
	require.NoError(t, err)

	svc := services.NewBookingService(f.store, services.LogNotifier{},
		services.WithClock(func() time.Time { return f.now }))
	limiter := services.NewFixedWindowLimiter(2, time.Minute)
	limiter.SetClock(func() time.Time { return f.now })

	f.app = fiber.New()
	routes.SetupRoutes(f.app, f.store, svc, limiter)
	return f
}

func (f *apiFixture) token(t *testing.T, user *models.User) string {
	t.Helper()
	claims := middleware.Claims{
		Role:      user.Role,
		ParkingID: user.ParkingID,
		// Token expiry is checked against the wall clock, not the
		// fixture's simulated one
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (f *apiFixture) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBooking(t *testing.T, resp *http.Response) *models.Booking {
	t.Helper()
	var out struct {
		Booking *models.Booking `json:"booking"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotNil(t, out.Booking)
	return out.Booking
}

func (f *apiFixture) createBody() fiber.Map {
	start := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	return fiber.Map{
		"car_id":     f.car.ID,
		"start_date": start,
		"end_date":   start.Add(48 * time.Hour),
	}
}

func TestHealthEndpointIsPublic(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.request(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodGet, "/api/bookings/mine", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.request(t, http.MethodGet, "/api/bookings/mine", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateBookingEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, f.customer)

	resp := f.request(t, http.MethodPost, "/api/bookings/", token, f.createBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	booking := decodeBooking(t, resp)
	require.Equal(t, models.BookingStatusPending, booking.Status)
	require.Equal(t, 2100.0, booking.TotalPrice)

	// Same slot again maps the conflict to 409
	resp = f.request(t, http.MethodPost, "/api/bookings/", token, f.createBody())
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateBookingRateLimited(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, f.customer)

	// Limit is 2 per window in this fixture; bodies are irrelevant
	f.request(t, http.MethodPost, "/api/bookings/", token, f.createBody())
	f.request(t, http.MethodPost, "/api/bookings/", token, f.createBody())
	resp := f.request(t, http.MethodPost, "/api/bookings/", token, f.createBody())
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestBookingVisibility(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, f.customer)

	resp := f.request(t, http.MethodPost, "/api/bookings/", token, f.createBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	booking := decodeBooking(t, resp)

	other, err := f.store.CreateUser(&models.User{
		Name: "Ravi", Phone: "+911000000002", Role: models.RoleCustomer, Verified: true,
	})
	require.NoError(t, err)

	resp = f.request(t, http.MethodGet, "/api/bookings/"+booking.ID, f.token(t, other), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Staff may inspect any booking
	resp = f.request(t, http.MethodGet, "/api/bookings/"+booking.ID, f.token(t, f.staff), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOverdueStatusVisibility(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, f.customer)

	resp := f.request(t, http.MethodPost, "/api/bookings/", token, f.createBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	booking := decodeBooking(t, resp)
	path := "/api/bookings/" + booking.ID + "/overdue"

	resp = f.request(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	other, err := f.store.CreateUser(&models.User{
		Name: "Ravi", Phone: "+911000000002", Role: models.RoleCustomer, Verified: true,
	})
	require.NoError(t, err)
	resp = f.request(t, http.MethodGet, path, f.token(t, other), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.request(t, http.MethodGet, path, f.token(t, f.staff), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStaffRoutesNeedStaffRole(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodGet, "/api/staff/overdue", f.token(t, f.customer), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.request(t, http.MethodGet, "/api/staff/overdue", f.token(t, f.staff), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPaymentAndOTPFlowOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	customerToken := f.token(t, f.customer)
	staffToken := f.token(t, f.staff)

	resp := f.request(t, http.MethodPost, "/api/bookings/", customerToken, f.createBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	booking := decodeBooking(t, resp)
	base := "/api/bookings/" + booking.ID

	// Missing reference fails validation before the service runs
	resp = f.request(t, http.MethodPost, base+"/payments/advance", customerToken, fiber.Map{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.request(t, http.MethodPost, base+"/payments/advance", customerToken,
		fiber.Map{"external_reference_id": "gw-adv-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Retry maps to 409
	resp = f.request(t, http.MethodPost, base+"/payments/advance", customerToken,
		fiber.Map{"external_reference_id": "gw-adv-2"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// The code is never serialized in responses; staff verify the stored one
	stored, err := f.store.GetBooking(booking.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.OTPCode)

	f.now = stored.StartDate.Add(30 * time.Minute)
	resp = f.request(t, http.MethodPost, "/api/staff/bookings/"+booking.ID+"/otp/verify", staffToken,
		fiber.Map{"code": stored.OTPCode})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A second verification attempt maps to 422
	resp = f.request(t, http.MethodPost, "/api/staff/bookings/"+booking.ID+"/otp/verify", staffToken,
		fiber.Map{"code": stored.OTPCode})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestRefundEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	customerToken := f.token(t, f.customer)
	staffToken := f.token(t, f.staff)

	resp := f.request(t, http.MethodPost, "/api/bookings/", customerToken, f.createBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	booking := decodeBooking(t, resp)

	resp = f.request(t, http.MethodPost, "/api/bookings/"+booking.ID+"/payments/advance", customerToken,
		fiber.Map{"external_reference_id": "gw-adv-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	paid := decodeBooking(t, resp)

	refundPath := fmt.Sprintf("/api/staff/payments/%s/refund", paid.AdvancePaymentID)
	resp = f.request(t, http.MethodPost, refundPath, staffToken,
		fiber.Map{"amount": 100, "reason": "goodwill"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.request(t, http.MethodPost, refundPath, staffToken,
		fiber.Map{"amount": -5, "reason": "nope"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
