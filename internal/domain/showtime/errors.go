package showtime

import "errors"

// Showtime ドメインのエラー定義
var (
	ErrShowtimeNotFound = errors.New("上映回が見つかりません")
	ErrScreenIDRequired = errors.New("スクリーンIDは必須です")
	ErrInvalidPrice     = errors.New("価格は0以上である必要があります")
)
