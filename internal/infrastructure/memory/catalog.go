package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/showtime"
)

// Catalog は上映回と座席配置を保持する読み取り用カタログ
// showtime.Repository と seat.Directory を実装する
type Catalog struct {
	mu        sync.RWMutex
	showtimes map[string]*showtime.Showtime
	seats     map[string][]*seat.Seat
}

func NewCatalog() *Catalog {
	return &Catalog{
		showtimes: make(map[string]*showtime.Showtime),
		seats:     make(map[string][]*seat.Seat),
	}
}

// AddShowtime は上映回を登録する
func (c *Catalog) AddShowtime(st *showtime.Showtime) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *st
	c.showtimes[st.ID] = &cp
}

// AddSeats はスクリーンに座席を追加する
func (c *Catalog) AddSeats(seats ...*seat.Seat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range seats {
		cp := *s
		c.seats[s.ScreenID] = append(c.seats[s.ScreenID], &cp)
	}
}

func (c *Catalog) GetByID(_ context.Context, id string) (*showtime.Showtime, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.showtimes[id]
	if !ok {
		return nil, showtime.ErrShowtimeNotFound
	}
	cp := *st
	return &cp, nil
}

func (c *Catalog) GetByScreenID(_ context.Context, screenID string) ([]*seat.Seat, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	src := c.seats[screenID]
	out := make([]*seat.Seat, len(src))
	for i, s := range src {
		cp := *s
		out[i] = &cp
	}
	seat.SortByPosition(out)
	return out, nil
}

// SeedDemo はローカル動作確認用のスクリーンと上映回を登録する
// rows 列 × perRow 席、最後の列は vip、その手前は premium
func SeedDemo(c *Catalog, screenID, showtimeID string, rows, perRow, basePrice int, start time.Time) {
	c.AddShowtime(&showtime.Showtime{
		ID:        showtimeID,
		MovieID:   "movie-" + showtimeID,
		ScreenID:  screenID,
		StartTime: start,
		BasePrice: basePrice,
		CreatedAt: time.Now(),
	})
	for _, st := range seat.GridLayout(screenID, rows, perRow) {
		st.ID = fmt.Sprintf("%s%d", st.RowLabel, st.Number)
		st.CreatedAt = time.Now()
		c.AddSeats(st)
	}
}

var (
	_ showtime.Repository = (*Catalog)(nil)
	_ seat.Directory      = (*Catalog)(nil)
)
