package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/hold"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/clock"
)

type holdRow struct {
	ShowtimeID string     `db:"showtime_id"`
	SeatID     string     `db:"seat_id"`
	BookingID  string     `db:"booking_id"`
	Status     string     `db:"status"`
	ExpiresAt  *time.Time `db:"expires_at"`
	CreatedAt  time.Time  `db:"created_at"`
}

func (r *holdRow) toEntity() *hold.Hold {
	return &hold.Hold{
		ShowtimeID: r.ShowtimeID, SeatID: r.SeatID, BookingID: r.BookingID,
		Status: hold.Status(r.Status), ExpiresAt: r.ExpiresAt, CreatedAt: r.CreatedAt,
	}
}

// HoldLedger は seat_holds テーブルによる hold.Ledger 実装
// (showtime_id, seat_id) の主キーが二重保持を防ぎ、各操作は1トランザクションで完結する
type HoldLedger struct {
	db    *sqlx.DB
	clock clock.Clock
}

func NewHoldLedger(db *sqlx.DB, c clock.Clock) *HoldLedger {
	return &HoldLedger{db: db, clock: c}
}

// 期限切れの pending 行だけを上書きする。有効な行は衝突しても返らない
const tryReserveQuery = `
	INSERT INTO seat_holds (showtime_id, seat_id, booking_id, status, expires_at, created_at)
	SELECT $1, s.seat_id, $3, 'pending', $4, $5
	FROM unnest($2::uuid[]) AS s(seat_id)
	ORDER BY s.seat_id
	ON CONFLICT (showtime_id, seat_id) DO UPDATE
	SET booking_id = EXCLUDED.booking_id,
	    status = 'pending',
	    expires_at = EXCLUDED.expires_at,
	    created_at = EXCLUDED.created_at
	WHERE seat_holds.status = 'pending' AND seat_holds.expires_at <= $5
	RETURNING showtime_id, seat_id, booking_id, status, expires_at, created_at
`

func (l *HoldLedger) TryReserve(ctx context.Context, showtimeID string, seatIDs []string, bookingID string, holdDuration time.Duration) ([]*hold.Hold, error) {
	ids := hold.NormalizeSeatIDs(seatIDs)
	if len(ids) == 0 {
		return nil, hold.ErrNoSeats
	}
	now := l.clock.Now()

	tx, err := l.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	var rows []holdRow
	if err := tx.SelectContext(ctx, &rows, tryReserveQuery, showtimeID, pq.Array(ids), bookingID, now.Add(holdDuration), now); err != nil {
		return nil, fmt.Errorf("座席保持に失敗: %w", err)
	}
	if len(rows) < len(ids) {
		got := make([]string, len(rows))
		for i, r := range rows {
			got[i] = r.SeatID
		}
		// ロールバックで取得済みの行も元に戻る
		return nil, &hold.SeatsUnavailableError{SeatIDs: hold.Difference(ids, got)}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	holds := make([]*hold.Hold, len(rows))
	for i := range rows {
		holds[i] = rows[i].toEntity()
	}
	return holds, nil
}

func (l *HoldLedger) Confirm(ctx context.Context, bookingID string) error {
	tx, err := l.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	var rows []holdRow
	query := `SELECT showtime_id, seat_id, booking_id, status, expires_at, created_at FROM seat_holds WHERE booking_id = $1 ORDER BY seat_id FOR UPDATE`
	if err := tx.SelectContext(ctx, &rows, query, bookingID); err != nil {
		if isInvalidID(err) {
			return hold.ErrHoldNotFound
		}
		return fmt.Errorf("保持取得に失敗: %w", err)
	}
	if len(rows) == 0 {
		return hold.ErrHoldNotFound
	}

	now := l.clock.Now()
	confirmed := 0
	for i := range rows {
		h := rows[i].toEntity()
		if h.Status == hold.StatusConfirmed {
			confirmed++
			continue
		}
		if h.IsExpired(now) {
			return hold.ErrHoldExpired
		}
	}
	if confirmed == len(rows) {
		return hold.ErrHoldAlreadyConfirmed
	}

	if _, err := tx.ExecContext(ctx, `UPDATE seat_holds SET status = 'confirmed', expires_at = NULL WHERE booking_id = $1 AND status = 'pending'`, bookingID); err != nil {
		return fmt.Errorf("保持確定に失敗: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

func (l *HoldLedger) Release(ctx context.Context, bookingID string) (int, error) {
	result, err := l.db.ExecContext(ctx, `DELETE FROM seat_holds WHERE booking_id = $1`, bookingID)
	if err != nil {
		if isInvalidID(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("保持解放に失敗: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("解放結果の確認に失敗: %w", err)
	}
	return int(n), nil
}

func (l *HoldLedger) HeldSeatIDs(ctx context.Context, showtimeID string, seatIDs []string) ([]string, error) {
	now := l.clock.Now()
	var held []string
	var err error
	if len(seatIDs) == 0 {
		err = l.db.SelectContext(ctx, &held, `
			SELECT seat_id FROM seat_holds
			WHERE showtime_id = $1 AND (status = 'confirmed' OR expires_at > $2)
			ORDER BY seat_id`, showtimeID, now)
	} else {
		err = l.db.SelectContext(ctx, &held, `
			SELECT seat_id FROM seat_holds
			WHERE showtime_id = $1 AND seat_id = ANY($2::uuid[]) AND (status = 'confirmed' OR expires_at > $3)
			ORDER BY seat_id`, showtimeID, pq.Array(hold.NormalizeSeatIDs(seatIDs)), now)
	}
	if err != nil {
		if isInvalidID(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("保持座席取得に失敗: %w", err)
	}
	return held, nil
}

func (l *HoldLedger) PurgeExpired(ctx context.Context) (int, error) {
	result, err := l.db.ExecContext(ctx, `DELETE FROM seat_holds WHERE status = 'pending' AND expires_at <= $1`, l.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("期限切れ保持削除に失敗: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除結果の確認に失敗: %w", err)
	}
	return int(n), nil
}

var _ hold.Ledger = (*HoldLedger)(nil)
