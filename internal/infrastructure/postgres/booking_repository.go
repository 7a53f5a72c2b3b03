package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/transaction"
)

type bookingRow struct {
	ID             string         `db:"id"`
	UserID         string         `db:"user_id"`
	ShowtimeID     string         `db:"showtime_id"`
	Status         string         `db:"status"`
	TotalAmount    int            `db:"total_amount"`
	IdempotencyKey sql.NullString `db:"idempotency_key"`
	ExpiresAt      time.Time      `db:"expires_at"`
	ConfirmedAt    *time.Time     `db:"confirmed_at"`
	CancelledAt    *time.Time     `db:"cancelled_at"`
	CancelReason   string         `db:"cancel_reason"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

type bookingSeatRow struct {
	SeatID string `db:"seat_id"`
	Price  int    `db:"price"`
}

type ticketRow struct {
	ID        string     `db:"id"`
	BookingID string     `db:"booking_id"`
	SeatID    string     `db:"seat_id"`
	Price     int        `db:"price"`
	IssuedAt  time.Time  `db:"issued_at"`
	VoidedAt  *time.Time `db:"voided_at"`
}

const bookingColumns = `id, user_id, showtime_id, status, total_amount, idempotency_key, expires_at, confirmed_at, cancelled_at, cancel_reason, created_at, updated_at`

// BookingRepository は予約とチケットのPostgreSQL実装
type BookingRepository struct{ db *sqlx.DB }

func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	stx, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	query := `INSERT INTO bookings (id, user_id, showtime_id, status, total_amount, idempotency_key, expires_at, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)`
	if _, err := stx.ExecContext(ctx, query, b.ID, b.UserID, b.ShowtimeID, string(b.Status), b.TotalAmount, b.IdempotencyKey, b.ExpiresAt, b.CreatedAt, b.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return booking.ErrIdempotencyKeyConflict
		}
		return fmt.Errorf("予約作成に失敗: %w", err)
	}

	seatIDs := make([]string, len(b.Items))
	prices := make([]int64, len(b.Items))
	for i, it := range b.Items {
		seatIDs[i] = it.SeatID
		prices[i] = int64(it.Price)
	}
	seatsQuery := `
		INSERT INTO booking_seats (booking_id, seat_id, price, position)
		SELECT $1, s.seat_id, s.price, s.ord
		FROM unnest($2::uuid[], $3::int[]) WITH ORDINALITY AS s(seat_id, price, ord)
	`
	if _, err := stx.ExecContext(ctx, seatsQuery, b.ID, pq.Array(seatIDs), pq.Array(prices)); err != nil {
		return fmt.Errorf("予約座席関連付けに失敗: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	var row bookingRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return r.load(ctx, &row)
}

func (r *BookingRepository) GetByIdempotencyKey(ctx context.Context, key string) (*booking.Booking, error) {
	var row bookingRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+bookingColumns+` FROM bookings WHERE idempotency_key = $1`, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return r.load(ctx, &row)
}

func (r *BookingRepository) Transition(ctx context.Context, tx transaction.Tx, b *booking.Booking, from booking.Status) error {
	stx, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	query := `
		UPDATE bookings
		SET status = $1, confirmed_at = $2, cancelled_at = $3, cancel_reason = $4, updated_at = $5
		WHERE id = $6 AND status = $7
	`
	result, err := stx.ExecContext(ctx, query, string(b.Status), b.ConfirmedAt, b.CancelledAt, b.CancelReason, b.UpdatedAt, b.ID, string(from))
	if err != nil {
		return fmt.Errorf("予約更新に失敗: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗: %w", err)
	}
	if rows == 0 {
		return booking.ErrStatusConflict
	}
	return nil
}

func (r *BookingRepository) CreateTickets(ctx context.Context, tx transaction.Tx, tickets []*booking.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	stx, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	ids := make([]string, len(tickets))
	bookingIDs := make([]string, len(tickets))
	seatIDs := make([]string, len(tickets))
	prices := make([]int64, len(tickets))
	issued := make([]string, len(tickets))
	for i, t := range tickets {
		ids[i], bookingIDs[i], seatIDs[i] = t.ID, t.BookingID, t.SeatID
		prices[i] = int64(t.Price)
		issued[i] = t.IssuedAt.UTC().Format(time.RFC3339Nano)
	}
	query := `
		INSERT INTO tickets (id, booking_id, seat_id, price, issued_at)
		SELECT * FROM unnest($1::uuid[], $2::uuid[], $3::uuid[], $4::int[], $5::timestamptz[])
	`
	if _, err := stx.ExecContext(ctx, query, pq.Array(ids), pq.Array(bookingIDs), pq.Array(seatIDs), pq.Array(prices), pq.Array(issued)); err != nil {
		if isUniqueViolation(err) {
			return booking.ErrAlreadyTerminal
		}
		return fmt.Errorf("チケット作成に失敗: %w", err)
	}
	return nil
}

func (r *BookingRepository) VoidTickets(ctx context.Context, tx transaction.Tx, bookingID string, at time.Time) error {
	stx, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	if _, err := stx.ExecContext(ctx, `UPDATE tickets SET voided_at = $2 WHERE booking_id = $1 AND voided_at IS NULL`, bookingID, at); err != nil {
		return fmt.Errorf("チケット無効化に失敗: %w", err)
	}
	return nil
}

func (r *BookingRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*booking.Booking, error) {
	var rows []bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = 'pending' AND expires_at <= $1 ORDER BY expires_at LIMIT $2`
	if err := r.db.SelectContext(ctx, &rows, query, now, limit); err != nil {
		return nil, fmt.Errorf("期限切れ予約取得に失敗: %w", err)
	}
	result := make([]*booking.Booking, 0, len(rows))
	for i := range rows {
		b, err := r.load(ctx, &rows[i])
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, nil
}

func (r *BookingRepository) load(ctx context.Context, row *bookingRow) (*booking.Booking, error) {
	var seats []bookingSeatRow
	if err := r.db.SelectContext(ctx, &seats, `SELECT seat_id, price FROM booking_seats WHERE booking_id = $1 ORDER BY position`, row.ID); err != nil {
		return nil, fmt.Errorf("予約座席取得に失敗: %w", err)
	}
	var tickets []ticketRow
	if err := r.db.SelectContext(ctx, &tickets, `SELECT id, booking_id, seat_id, price, issued_at, voided_at FROM tickets WHERE booking_id = $1 ORDER BY issued_at, seat_id`, row.ID); err != nil {
		return nil, fmt.Errorf("チケット取得に失敗: %w", err)
	}
	return toBooking(row, seats, tickets), nil
}

func toBooking(row *bookingRow, seats []bookingSeatRow, tickets []ticketRow) *booking.Booking {
	b := &booking.Booking{
		ID: row.ID, UserID: row.UserID, ShowtimeID: row.ShowtimeID,
		Status: booking.Status(row.Status), TotalAmount: row.TotalAmount,
		IdempotencyKey: row.IdempotencyKey.String, ExpiresAt: row.ExpiresAt,
		ConfirmedAt: row.ConfirmedAt, CancelledAt: row.CancelledAt, CancelReason: row.CancelReason,
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
	b.Items = make([]booking.Item, len(seats))
	for i, s := range seats {
		b.Items[i] = booking.Item{SeatID: s.SeatID, Price: s.Price}
	}
	b.Tickets = make([]*booking.Ticket, len(tickets))
	for i, t := range tickets {
		b.Tickets[i] = &booking.Ticket{
			ID: t.ID, BookingID: t.BookingID, SeatID: t.SeatID,
			Price: t.Price, IssuedAt: t.IssuedAt, VoidedAt: t.VoidedAt,
		}
	}
	return b
}

var _ booking.Repository = (*BookingRepository)(nil)
