package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/application"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/booking"
)

// MockBookingService はBookingServiceInterfaceのモック
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) CreateBooking(ctx context.Context, input application.CreateBookingInput) (*booking.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingService) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingService) CancelBooking(ctx context.Context, input application.CancelBookingInput) (*booking.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

// MockPaymentService はPaymentServiceInterfaceのモック
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) HandlePaymentEvent(ctx context.Context, ev application.PaymentEvent) (application.PaymentOutcome, error) {
	args := m.Called(ctx, ev)
	return args.Get(0).(application.PaymentOutcome), args.Error(1)
}

// MockAvailabilityService はAvailabilityServiceInterfaceのモック
type MockAvailabilityService struct {
	mock.Mock
}

func (m *MockAvailabilityService) GetShowtimeSeats(ctx context.Context, showtimeID string) ([]*application.SeatAvailability, error) {
	args := m.Called(ctx, showtimeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*application.SeatAvailability), args.Error(1)
}

func (m *MockAvailabilityService) CheckAvailability(ctx context.Context, showtimeID string, seatIDs []string) (*application.AvailabilityResult, error) {
	args := m.Called(ctx, showtimeID, seatIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.AvailabilityResult), args.Error(1)
}

func (m *MockAvailabilityService) CountAvailable(ctx context.Context, showtimeID string) (int, error) {
	args := m.Called(ctx, showtimeID)
	return args.Int(0), args.Error(1)
}

func newRequest(method, target, body string) *http.Request {
	if body == "" {
		return httptest.NewRequest(method, target, nil)
	}
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

// serve はルートを登録してリクエストを実行する。エラーはカスタムエラーハンドラーで変換される
func serve(req *http.Request, route string, h echo.HandlerFunc, mws ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	e := NewTestEcho()
	e.Add(req.Method, route, h, mws...)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}
