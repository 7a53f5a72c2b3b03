package booking

import (
	"context"
	"time"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/transaction"
)

// Repository は予約とチケットのリポジトリ
// 座席保持は hold.Ledger が所有し、ここでは扱わない
type Repository interface {
	// Create は新しい予約を作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, b *Booking) error

	// GetByID はIDから予約をチケット込みで取得する
	GetByID(ctx context.Context, id string) (*Booking, error)

	// GetByIdempotencyKey は冪等性キーから予約を取得する
	GetByIdempotencyKey(ctx context.Context, key string) (*Booking, error)

	// Transition は現在の状態が from の場合のみ b の状態を保存する
	// 一致しない場合は ErrStatusConflict を返す（トランザクション必須）
	Transition(ctx context.Context, tx transaction.Tx, b *Booking, from Status) error

	// CreateTickets はチケットを一括作成する（トランザクション必須）
	CreateTickets(ctx context.Context, tx transaction.Tx, tickets []*Ticket) error

	// VoidTickets は予約の有効なチケットを無効化する（トランザクション必須）
	VoidTickets(ctx context.Context, tx transaction.Tx, bookingID string, at time.Time) error

	// ListExpiredPending は now 時点で期限切れの pending 予約を最大 limit 件返す
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*Booking, error)
}
