package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/transaction"
)

// BookingRepository は booking.Repository のメモリ実装
// 保存時と取得時にコピーするため呼び出し側の変更は反映されない
type BookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*booking.Booking
	byKey    map[string]string
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{
		bookings: make(map[string]*booking.Booking),
		byKey:    make(map[string]string),
	}
}

func (r *BookingRepository) Create(_ context.Context, _ transaction.Tx, b *booking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.IdempotencyKey != "" {
		if _, ok := r.byKey[b.IdempotencyKey]; ok {
			return booking.ErrIdempotencyKeyConflict
		}
		r.byKey[b.IdempotencyKey] = b.ID
	}
	r.bookings[b.ID] = copyBooking(b)
	return nil
}

func (r *BookingRepository) GetByID(_ context.Context, id string) (*booking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return copyBooking(b), nil
}

func (r *BookingRepository) GetByIdempotencyKey(ctx context.Context, key string) (*booking.Booking, error) {
	r.mu.RLock()
	id, ok := r.byKey[key]
	r.mu.RUnlock()
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *BookingRepository) Transition(_ context.Context, _ transaction.Tx, b *booking.Booking, from booking.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.bookings[b.ID]
	if !ok {
		return booking.ErrBookingNotFound
	}
	if cur.Status != from {
		return booking.ErrStatusConflict
	}
	cur.Status = b.Status
	cur.ConfirmedAt = copyTime(b.ConfirmedAt)
	cur.CancelledAt = copyTime(b.CancelledAt)
	cur.CancelReason = b.CancelReason
	cur.UpdatedAt = b.UpdatedAt
	return nil
}

func (r *BookingRepository) CreateTickets(_ context.Context, _ transaction.Tx, tickets []*booking.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tickets {
		b, ok := r.bookings[t.BookingID]
		if !ok {
			return booking.ErrBookingNotFound
		}
		c := *t
		b.Tickets = append(b.Tickets, &c)
	}
	return nil
}

func (r *BookingRepository) VoidTickets(_ context.Context, _ transaction.Tx, bookingID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[bookingID]
	if !ok {
		return booking.ErrBookingNotFound
	}
	for _, t := range b.Tickets {
		t.Void(at)
	}
	return nil
}

func (r *BookingRepository) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]*booking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*booking.Booking
	for _, b := range r.bookings {
		if b.IsExpired(now) {
			out = append(out, copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyBooking(b *booking.Booking) *booking.Booking {
	c := *b
	c.Items = append([]booking.Item(nil), b.Items...)
	c.ConfirmedAt = copyTime(b.ConfirmedAt)
	c.CancelledAt = copyTime(b.CancelledAt)
	c.Tickets = make([]*booking.Ticket, len(b.Tickets))
	for i, t := range b.Tickets {
		tc := *t
		tc.VoidedAt = copyTime(t.VoidedAt)
		c.Tickets[i] = &tc
	}
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

var _ booking.Repository = (*BookingRepository)(nil)
