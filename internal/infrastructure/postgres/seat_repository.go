package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/seat"
)

type seatRow struct {
	ID        string    `db:"id"`
	ScreenID  string    `db:"screen_id"`
	RowLabel  string    `db:"row_label"`
	Number    int       `db:"number"`
	Tier      string    `db:"tier"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *seatRow) toEntity() *seat.Seat {
	return &seat.Seat{
		ID: r.ID, ScreenID: r.ScreenID, RowLabel: r.RowLabel,
		Number: r.Number, Tier: seat.Tier(r.Tier), CreatedAt: r.CreatedAt,
	}
}

// SeatRepository は座席配置（seat.Directory）のPostgreSQL実装
type SeatRepository struct{ db *sqlx.DB }

func NewSeatRepository(db *sqlx.DB) *SeatRepository { return &SeatRepository{db: db} }

// GetByScreenID はスクリーンの全座席を (列, 番号) 順で返す
func (r *SeatRepository) GetByScreenID(ctx context.Context, screenID string) ([]*seat.Seat, error) {
	query := `SELECT id, screen_id, row_label, number, tier, created_at FROM seats WHERE screen_id = $1 ORDER BY row_label, number`
	var rows []seatRow
	if err := r.db.SelectContext(ctx, &rows, query, screenID); err != nil {
		if isInvalidID(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("座席取得に失敗: %w", err)
	}
	seats := make([]*seat.Seat, len(rows))
	for i, row := range rows {
		seats[i] = row.toEntity()
	}
	return seats, nil
}

// CreateScreen はスクリーンを作成しIDを返す（初期データ投入用）
func (r *SeatRepository) CreateScreen(ctx context.Context, name string) (string, error) {
	var id string
	if err := r.db.QueryRowContext(ctx, `INSERT INTO screens (name) VALUES ($1) RETURNING id`, name).Scan(&id); err != nil {
		return "", fmt.Errorf("スクリーン作成に失敗: %w", err)
	}
	return id, nil
}

// CreateBulk は複数の座席を一括作成する（初期データ投入用）
func (r *SeatRepository) CreateBulk(ctx context.Context, seats []*seat.Seat) error {
	if len(seats) == 0 {
		return nil
	}

	// バッチサイズごとに分割してマルチバリューINSERTを実行
	const batchSize = 1000
	for i := 0; i < len(seats); i += batchSize {
		end := i + batchSize
		if end > len(seats) {
			end = len(seats)
		}
		if err := r.createBulkBatch(ctx, seats[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *SeatRepository) createBulkBatch(ctx context.Context, seats []*seat.Seat) error {
	const cols = 5
	args := make([]interface{}, 0, len(seats)*cols)
	placeholders := make([]string, 0, len(seats))

	for i, s := range seats {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("座席 %s: %w", s.Label(), err)
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = time.Now()
		}
		base := i * cols
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5))
		args = append(args, s.ScreenID, s.RowLabel, s.Number, string(s.Tier), s.CreatedAt)
	}

	query := `INSERT INTO seats (screen_id, row_label, number, tier, created_at) VALUES ` +
		strings.Join(placeholders, ", ") + ` RETURNING id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("座席一括作成に失敗: %w", err)
	}
	defer rows.Close()

	// RETURNING は VALUES の順に返る
	for i := 0; rows.Next(); i++ {
		if err := rows.Scan(&seats[i].ID); err != nil {
			return fmt.Errorf("座席ID取得に失敗: %w", err)
		}
	}
	return rows.Err()
}

var _ seat.Directory = (*SeatRepository)(nil)
