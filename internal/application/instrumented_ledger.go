package application

import (
	"context"
	"errors"
	"time"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/hold"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/metrics"
)

// InstrumentedLedger は hold.Ledger の各操作の所要時間と結果を記録する
type InstrumentedLedger struct {
	next    hold.Ledger
	metrics *metrics.Metrics
}

func NewInstrumentedLedger(next hold.Ledger, m *metrics.Metrics) *InstrumentedLedger {
	return &InstrumentedLedger{next: next, metrics: m}
}

func (l *InstrumentedLedger) TryReserve(ctx context.Context, showtimeID string, seatIDs []string, bookingID string, d time.Duration) ([]*hold.Hold, error) {
	start := time.Now()
	holds, err := l.next.TryReserve(ctx, showtimeID, seatIDs, bookingID, d)
	l.metrics.ObserveLedger("try_reserve", ledgerStatus(err), start)
	return holds, err
}

func (l *InstrumentedLedger) Confirm(ctx context.Context, bookingID string) error {
	start := time.Now()
	err := l.next.Confirm(ctx, bookingID)
	l.metrics.ObserveLedger("confirm", ledgerStatus(err), start)
	return err
}

func (l *InstrumentedLedger) Release(ctx context.Context, bookingID string) (int, error) {
	start := time.Now()
	n, err := l.next.Release(ctx, bookingID)
	l.metrics.ObserveLedger("release", ledgerStatus(err), start)
	return n, err
}

func (l *InstrumentedLedger) HeldSeatIDs(ctx context.Context, showtimeID string, seatIDs []string) ([]string, error) {
	start := time.Now()
	held, err := l.next.HeldSeatIDs(ctx, showtimeID, seatIDs)
	l.metrics.ObserveLedger("held_seat_ids", ledgerStatus(err), start)
	return held, err
}

func (l *InstrumentedLedger) PurgeExpired(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := l.next.PurgeExpired(ctx)
	l.metrics.ObserveLedger("purge_expired", ledgerStatus(err), start)
	return n, err
}

func ledgerStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, hold.ErrSeatsUnavailable):
		return "conflict"
	case errors.Is(err, hold.ErrHoldExpired), errors.Is(err, hold.ErrHoldNotFound):
		return "expired"
	case errors.Is(err, hold.ErrHoldAlreadyConfirmed):
		return "duplicate"
	default:
		return "error"
	}
}

var _ hold.Ledger = (*InstrumentedLedger)(nil)
