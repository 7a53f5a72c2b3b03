package hold

import (
	"context"
	"time"
)

// Ledger は座席保持の唯一の書き込み口
// 各操作は単独でアトミックに実行される
type Ledger interface {
	// TryReserve は全座席を同じ期限で保持する。1席でも保持できなければ何も書かず
	// *SeatsUnavailableError で競合座席を返す。期限切れの pending は引き継ぐ
	TryReserve(ctx context.Context, showtimeID string, seatIDs []string, bookingID string, holdDuration time.Duration) ([]*Hold, error)

	// Confirm は予約の全保持を期限なしの confirmed にする
	// ErrHoldNotFound, ErrHoldExpired, ErrHoldAlreadyConfirmed を返しうる
	Confirm(ctx context.Context, bookingID string) error

	// Release は予約の保持を全て削除する。何度呼んでも同じ結果になる
	Release(ctx context.Context, bookingID string) (int, error)

	// HeldSeatIDs は seatIDs のうち現在有効な保持がある座席を返す
	// seatIDs が空なら上映回の全保持座席を返す
	HeldSeatIDs(ctx context.Context, showtimeID string, seatIDs []string) ([]string, error)

	// PurgeExpired は期限切れの pending 保持を物理削除する
	PurgeExpired(ctx context.Context) (int, error)
}
