package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/showtime"
)

type showtimeRow struct {
	ID        string    `db:"id"`
	MovieID   string    `db:"movie_id"`
	ScreenID  string    `db:"screen_id"`
	StartTime time.Time `db:"start_time"`
	BasePrice int       `db:"base_price"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *showtimeRow) toEntity() *showtime.Showtime {
	return &showtime.Showtime{
		ID:        r.ID,
		MovieID:   r.MovieID,
		ScreenID:  r.ScreenID,
		StartTime: r.StartTime,
		BasePrice: r.BasePrice,
		CreatedAt: r.CreatedAt,
	}
}

// ShowtimeRepository は上映回リポジトリのPostgreSQL実装
type ShowtimeRepository struct {
	db *sqlx.DB
}

func NewShowtimeRepository(db *sqlx.DB) *ShowtimeRepository {
	return &ShowtimeRepository{db: db}
}

// Create は上映回を登録する（初期データ投入用）
func (r *ShowtimeRepository) Create(ctx context.Context, st *showtime.Showtime) error {
	if err := st.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO showtimes (movie_id, screen_id, start_time, base_price, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}
	if err := r.db.QueryRowContext(ctx, query, st.MovieID, st.ScreenID, st.StartTime, st.BasePrice, st.CreatedAt).Scan(&st.ID); err != nil {
		return fmt.Errorf("上映回作成に失敗しました: %w", err)
	}
	return nil
}

// GetByID はIDから上映回を取得する
func (r *ShowtimeRepository) GetByID(ctx context.Context, id string) (*showtime.Showtime, error) {
	query := `SELECT id, movie_id, screen_id, start_time, base_price, created_at FROM showtimes WHERE id = $1`

	var row showtimeRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, showtime.ErrShowtimeNotFound
		}
		return nil, fmt.Errorf("上映回取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

var _ showtime.Repository = (*ShowtimeRepository)(nil)
