package showtime

import "context"

// Repository は上映回の読み取りリポジトリ
type Repository interface {
	// GetByID はIDから上映回を取得する
	GetByID(ctx context.Context, id string) (*Showtime, error)
}
