package booking

import "time"

// Status は予約の状態を表す
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Item は予約に含まれる1座席と確定時の価格
type Item struct {
	SeatID string
	Price  int
}

// Booking は座席保持の所有者であり、決済までの状態を追跡する
type Booking struct {
	ID             string
	UserID         string
	ShowtimeID     string
	Items          []Item
	TotalAmount    int
	Status         Status
	IdempotencyKey string
	ExpiresAt      time.Time
	ConfirmedAt    *time.Time
	CancelledAt    *time.Time
	CancelReason   string
	Tickets        []*Ticket
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewBooking は pending 状態の予約を作成する
func NewBooking(id, userID, showtimeID, idempotencyKey string, items []Item, now time.Time, holdDuration time.Duration) *Booking {
	var total int
	for _, it := range items {
		total += it.Price
	}
	return &Booking{
		ID:             id,
		UserID:         userID,
		ShowtimeID:     showtimeID,
		Items:          items,
		TotalAmount:    total,
		Status:         StatusPending,
		IdempotencyKey: idempotencyKey,
		ExpiresAt:      now.Add(holdDuration),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// SeatIDs は要求順の座席IDを返す
func (b *Booking) SeatIDs() []string {
	ids := make([]string, len(b.Items))
	for i, it := range b.Items {
		ids[i] = it.SeatID
	}
	return ids
}

// IsPending は予約が保留中かを返す
func (b *Booking) IsPending() bool {
	return b.Status == StatusPending
}

// IsTerminal は決済・期限切れ・キャンセルのいずれかで終了しているかを返す
func (b *Booking) IsTerminal() bool {
	return b.Status != StatusPending
}

// IsExpired は pending のまま期限を過ぎたかを返す
func (b *Booking) IsExpired(now time.Time) bool {
	return b.Status == StatusPending && !b.ExpiresAt.After(now)
}

// Confirm は予約を確定し、座席ごとにチケットを発行する
func (b *Booking) Confirm(now time.Time, newTicketID func() string) error {
	if b.Status != StatusPending {
		return ErrAlreadyTerminal
	}
	tickets := make([]*Ticket, len(b.Items))
	for i, it := range b.Items {
		tickets[i] = &Ticket{
			ID:        newTicketID(),
			BookingID: b.ID,
			SeatID:    it.SeatID,
			Price:     it.Price,
			IssuedAt:  now,
		}
	}
	b.Status = StatusConfirmed
	b.ConfirmedAt = &now
	b.Tickets = tickets
	b.UpdatedAt = now
	return nil
}

// Expire は期限切れとして予約を終了する
func (b *Booking) Expire(now time.Time) error {
	if b.Status != StatusPending {
		return ErrAlreadyTerminal
	}
	b.Status = StatusExpired
	b.UpdatedAt = now
	return nil
}

// Cancel は予約をキャンセルする。確定済みの場合はチケットを無効化する
func (b *Booking) Cancel(now time.Time, reason string) error {
	switch b.Status {
	case StatusPending:
	case StatusConfirmed:
		for _, t := range b.Tickets {
			t.Void(now)
		}
	default:
		return ErrAlreadyTerminal
	}
	b.Status = StatusCancelled
	b.CancelledAt = &now
	b.CancelReason = reason
	b.UpdatedAt = now
	return nil
}

// Ticket は確定済み予約の1座席分の入場券
type Ticket struct {
	ID        string
	BookingID string
	SeatID    string
	Price     int
	IssuedAt  time.Time
	VoidedAt  *time.Time
}

// Void はチケットを無効化する
func (t *Ticket) Void(now time.Time) {
	if t.VoidedAt == nil {
		t.VoidedAt = &now
	}
}

// IsValid は無効化されていないかを返す
func (t *Ticket) IsValid() bool {
	return t.VoidedAt == nil
}
