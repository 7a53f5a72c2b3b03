package seat

import "context"

// Directory はスクリーンの座席配置を読み出す（読み取り専用）
type Directory interface {
	// GetByScreenID はスクリーンの全座席を (列, 番号) 順で返す
	GetByScreenID(ctx context.Context, screenID string) ([]*Seat, error)
}
