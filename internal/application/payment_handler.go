package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/logger"
)

// PaymentEventType は決済サービスからの通知種別
type PaymentEventType string

const (
	PaymentSucceeded PaymentEventType = "succeeded"
	PaymentFailed    PaymentEventType = "failed"
)

// PaymentEvent は決済サービスからの通知
type PaymentEvent struct {
	Type       PaymentEventType `json:"type"`
	PaymentID  string           `json:"payment_id"`
	BookingID  string           `json:"booking_id"`
	Amount     int              `json:"amount"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// ErrUnknownPaymentEvent は未知の通知種別
var ErrUnknownPaymentEvent = fmt.Errorf("%w: 未知の決済イベント種別", booking.ErrInvalidRequest)

// PaymentOutcome は決済通知の処理結果
type PaymentOutcome string

const (
	OutcomeConfirmed PaymentOutcome = "confirmed"
	OutcomeCancelled PaymentOutcome = "cancelled"
	OutcomeDuplicate PaymentOutcome = "duplicate"
	OutcomeRefunded  PaymentOutcome = "refunded"
	OutcomeIgnored   PaymentOutcome = "ignored"
)

// HandlePaymentEvent は決済通知を予約に反映する
// 重複や遅延した通知は業務上の結果として扱い、エラーは再試行すべきものだけを返す
func (s *BookingService) HandlePaymentEvent(ctx context.Context, ev PaymentEvent) (PaymentOutcome, error) {
	log := logger.FromContext(ctx).With(
		zap.String("booking_id", ev.BookingID),
		zap.String("payment_id", ev.PaymentID),
		zap.String("type", string(ev.Type)),
	)

	outcome, err := s.handlePaymentEvent(ctx, ev)
	if err != nil {
		s.metrics.IncPaymentEvent(string(ev.Type), "error")
		log.Error("決済イベント処理に失敗", zap.Error(err))
		return "", err
	}
	s.metrics.IncPaymentEvent(string(ev.Type), string(outcome))
	log.Info("決済イベントを処理", zap.String("outcome", string(outcome)))
	return outcome, nil
}

func (s *BookingService) handlePaymentEvent(ctx context.Context, ev PaymentEvent) (PaymentOutcome, error) {
	if ev.BookingID == "" {
		return OutcomeIgnored, nil
	}

	switch ev.Type {
	case PaymentSucceeded:
		b, err := s.ConfirmPayment(ctx, ev.BookingID)
		switch {
		case err == nil:
			return OutcomeConfirmed, nil
		case errors.Is(err, booking.ErrBookingNotFound):
			return OutcomeIgnored, nil
		case errors.Is(err, booking.ErrHoldExpired):
			s.refundLatePayment(ctx, ev, b)
			return OutcomeRefunded, nil
		case errors.Is(err, booking.ErrAlreadyTerminal):
			if b != nil && b.Status == booking.StatusConfirmed {
				return OutcomeDuplicate, nil
			}
			s.refundLatePayment(ctx, ev, b)
			return OutcomeRefunded, nil
		default:
			return "", err
		}

	case PaymentFailed:
		_, err := s.CancelBooking(ctx, CancelBookingInput{
			BookingID:   ev.BookingID,
			IsAdmin:     true,
			Reason:      "payment_failed",
			PendingOnly: true,
		})
		switch {
		case err == nil:
			return OutcomeCancelled, nil
		case errors.Is(err, booking.ErrBookingNotFound):
			return OutcomeIgnored, nil
		case errors.Is(err, booking.ErrAlreadyTerminal):
			return OutcomeDuplicate, nil
		default:
			return "", err
		}

	default:
		return "", ErrUnknownPaymentEvent
	}
}

// refundLatePayment は確定できなかった決済の返金を依頼する
func (s *BookingService) refundLatePayment(ctx context.Context, ev PaymentEvent, b *booking.Booking) {
	r := booking.RefundRequest{
		BookingID:   ev.BookingID,
		PaymentID:   ev.PaymentID,
		Amount:      ev.Amount,
		Reason:      "hold_expired",
		RequestedAt: s.clock.Now(),
	}
	if b != nil {
		r.UserID = b.UserID
		if r.Amount == 0 {
			r.Amount = b.TotalAmount
		}
		if b.Status == booking.StatusCancelled {
			r.Reason = "booking_cancelled"
		}
	}
	s.requestRefund(ctx, r)
}
