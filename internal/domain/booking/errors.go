package booking

import (
	"errors"
	"fmt"
)

// Booking ドメインのエラー定義
var (
	ErrBookingNotFound        = errors.New("予約が見つかりません")
	ErrAlreadyTerminal        = errors.New("予約は既に終了しています")
	ErrHoldExpired            = errors.New("座席の保持期限が切れています")
	ErrForbidden              = errors.New("この予約を操作する権限がありません")
	ErrStatusConflict         = errors.New("予約の状態が変更されています")
	ErrIdempotencyKeyConflict = errors.New("同じ冪等性キーの予約が既に存在します")

	// ErrInvalidRequest は台帳に触れる前に拒否される不正な要求
	ErrInvalidRequest     = errors.New("不正な予約リクエストです")
	ErrUserIDRequired     = fmt.Errorf("%w: ユーザーIDは必須です", ErrInvalidRequest)
	ErrShowtimeIDRequired = fmt.Errorf("%w: 上映回IDは必須です", ErrInvalidRequest)
	ErrSeatIDsRequired    = fmt.Errorf("%w: 座席IDは必須です", ErrInvalidRequest)
	ErrDuplicateSeatID    = fmt.Errorf("%w: 座席IDが重複しています", ErrInvalidRequest)
	ErrSeatNotInScreen    = fmt.Errorf("%w: 上映スクリーンに存在しない座席です", ErrInvalidRequest)
	ErrShowtimeStarted    = fmt.Errorf("%w: 上映は既に開始しています", ErrInvalidRequest)
	ErrTooManySeats       = fmt.Errorf("%w: 座席数が上限を超えています", ErrInvalidRequest)
)
