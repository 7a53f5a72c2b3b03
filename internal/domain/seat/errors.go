package seat

import "errors"

// Seat ドメインのエラー定義
var (
	ErrSeatNotFound     = errors.New("座席が見つかりません")
	ErrScreenIDRequired = errors.New("スクリーンIDは必須です")
	ErrInvalidPosition  = errors.New("座席位置が不正です")
	ErrInvalidTier      = errors.New("座席区分が不正です")
)
