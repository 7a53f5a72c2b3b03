package handler

import (
	"context"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/application"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/booking"
)

// BookingServiceInterface は予約サービスのインターフェース
type BookingServiceInterface interface {
	CreateBooking(ctx context.Context, input application.CreateBookingInput) (*booking.Booking, error)
	GetBooking(ctx context.Context, id string) (*booking.Booking, error)
	CancelBooking(ctx context.Context, input application.CancelBookingInput) (*booking.Booking, error)
}

// PaymentServiceInterface は決済通知を処理するサービスのインターフェース
type PaymentServiceInterface interface {
	HandlePaymentEvent(ctx context.Context, ev application.PaymentEvent) (application.PaymentOutcome, error)
}

// AvailabilityServiceInterface は空席照会サービスのインターフェース
type AvailabilityServiceInterface interface {
	GetShowtimeSeats(ctx context.Context, showtimeID string) ([]*application.SeatAvailability, error)
	CheckAvailability(ctx context.Context, showtimeID string, seatIDs []string) (*application.AvailabilityResult, error)
	CountAvailable(ctx context.Context, showtimeID string) (int, error)
}
