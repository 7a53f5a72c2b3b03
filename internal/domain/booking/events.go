package booking

import (
	"context"
	"time"
)

// EventType は予約の状態遷移通知の種別
type EventType string

const (
	EventConfirmed EventType = "booking.confirmed"
	EventCancelled EventType = "booking.cancelled"
	EventExpired   EventType = "booking.expired"
)

// Event は状態遷移後に外部へ通知する内容
type Event struct {
	Type        EventType `json:"type"`
	BookingID   string    `json:"booking_id"`
	UserID      string    `json:"user_id"`
	ShowtimeID  string    `json:"showtime_id"`
	SeatIDs     []string  `json:"seat_ids"`
	Status      Status    `json:"status"`
	TotalAmount int       `json:"total_amount"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// NewEvent は予約の現在の状態から通知を作る
func NewEvent(t EventType, b *Booking, at time.Time) Event {
	return Event{
		Type:        t,
		BookingID:   b.ID,
		UserID:      b.UserID,
		ShowtimeID:  b.ShowtimeID,
		SeatIDs:     b.SeatIDs(),
		Status:      b.Status,
		TotalAmount: b.TotalAmount,
		OccurredAt:  at,
	}
}

// EventPublisher は予約の状態遷移を通知する
type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}

// RefundRequest は確定済み予約のキャンセル、または遅れて届いた決済に対する返金依頼
type RefundRequest struct {
	BookingID   string    `json:"booking_id"`
	UserID      string    `json:"user_id"`
	PaymentID   string    `json:"payment_id,omitempty"`
	Amount      int       `json:"amount"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// Refunder は返金処理を担う外部コラボレーター
type Refunder interface {
	RequestRefund(ctx context.Context, r RefundRequest) error
}
