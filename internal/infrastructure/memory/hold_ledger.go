package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/hold"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/clock"
)

type seatKey struct {
	showtimeID string
	seatID     string
}

// HoldLedger は単一プロセス用の hold.Ledger 実装
// 1つのミューテックスで全操作を直列化する
type HoldLedger struct {
	mu        sync.Mutex
	clock     clock.Clock
	holds     map[seatKey]*hold.Hold
	byBooking map[string][]seatKey
}

// NewHoldLedger は空の HoldLedger を作成する
func NewHoldLedger(c clock.Clock) *HoldLedger {
	return &HoldLedger{
		clock:     c,
		holds:     make(map[seatKey]*hold.Hold),
		byBooking: make(map[string][]seatKey),
	}
}

func (l *HoldLedger) TryReserve(ctx context.Context, showtimeID string, seatIDs []string, bookingID string, holdDuration time.Duration) ([]*hold.Hold, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids := hold.NormalizeSeatIDs(seatIDs)
	if len(ids) == 0 {
		return nil, hold.ErrNoSeats
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	var conflicts []string
	for _, id := range ids {
		if h, ok := l.holds[seatKey{showtimeID, id}]; ok && h.IsActive(now) {
			conflicts = append(conflicts, id)
		}
	}
	if len(conflicts) > 0 {
		return nil, &hold.SeatsUnavailableError{SeatIDs: conflicts}
	}

	expiresAt := now.Add(holdDuration)
	created := make([]*hold.Hold, 0, len(ids))
	for _, id := range ids {
		k := seatKey{showtimeID, id}
		if old, ok := l.holds[k]; ok {
			l.unindex(old.BookingID, k)
		}
		exp := expiresAt
		h := &hold.Hold{
			ShowtimeID: showtimeID,
			SeatID:     id,
			BookingID:  bookingID,
			Status:     hold.StatusPending,
			ExpiresAt:  &exp,
			CreatedAt:  now,
		}
		l.holds[k] = h
		l.byBooking[bookingID] = append(l.byBooking[bookingID], k)
		created = append(created, copyHold(h))
	}
	return created, nil
}

func (l *HoldLedger) Confirm(ctx context.Context, bookingID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	keys := l.byBooking[bookingID]
	if len(keys) == 0 {
		return hold.ErrHoldNotFound
	}
	now := l.clock.Now()
	confirmed := 0
	for _, k := range keys {
		h := l.holds[k]
		if h.Status == hold.StatusConfirmed {
			confirmed++
			continue
		}
		if h.IsExpired(now) {
			return hold.ErrHoldExpired
		}
	}
	if confirmed == len(keys) {
		return hold.ErrHoldAlreadyConfirmed
	}
	for _, k := range keys {
		h := l.holds[k]
		h.Status = hold.StatusConfirmed
		h.ExpiresAt = nil
	}
	return nil
}

func (l *HoldLedger) Release(ctx context.Context, bookingID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	keys := l.byBooking[bookingID]
	for _, k := range keys {
		delete(l.holds, k)
	}
	delete(l.byBooking, bookingID)
	return len(keys), nil
}

func (l *HoldLedger) HeldSeatIDs(ctx context.Context, showtimeID string, seatIDs []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	var held []string
	if len(seatIDs) == 0 {
		for k, h := range l.holds {
			if k.showtimeID == showtimeID && h.IsActive(now) {
				held = append(held, k.seatID)
			}
		}
		return hold.NormalizeSeatIDs(held), nil
	}
	for _, id := range hold.NormalizeSeatIDs(seatIDs) {
		if h, ok := l.holds[seatKey{showtimeID, id}]; ok && h.IsActive(now) {
			held = append(held, id)
		}
	}
	return held, nil
}

func (l *HoldLedger) PurgeExpired(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	n := 0
	for k, h := range l.holds {
		if h.IsExpired(now) {
			delete(l.holds, k)
			l.unindex(h.BookingID, k)
			n++
		}
	}
	return n, nil
}

// Holds は予約の保持を返す（テスト用）
func (l *HoldLedger) Holds(bookingID string) []*hold.Hold {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*hold.Hold
	for _, k := range l.byBooking[bookingID] {
		out = append(out, copyHold(l.holds[k]))
	}
	return out
}

func (l *HoldLedger) unindex(bookingID string, k seatKey) {
	keys := l.byBooking[bookingID]
	for i, kk := range keys {
		if kk == k {
			keys = append(keys[:i], keys[i+1:]...)
			break
		}
	}
	if len(keys) == 0 {
		delete(l.byBooking, bookingID)
		return
	}
	l.byBooking[bookingID] = keys
}

func copyHold(h *hold.Hold) *hold.Hold {
	c := *h
	if h.ExpiresAt != nil {
		exp := *h.ExpiresAt
		c.ExpiresAt = &exp
	}
	return &c
}

var _ hold.Ledger = (*HoldLedger)(nil)
