package showtime

import "time"

// Showtime はスクリーンでの1回の上映を表す
type Showtime struct {
	ID        string
	MovieID   string
	ScreenID  string
	StartTime time.Time
	// BasePrice は standard 席の価格（最小通貨単位）
	BasePrice int
	CreatedAt time.Time
}

// HasStarted は上映が開始済みかを返す
func (s *Showtime) HasStarted(now time.Time) bool {
	return !now.Before(s.StartTime)
}

// Validate は上映情報の検証を行う
func (s *Showtime) Validate() error {
	if s.ScreenID == "" {
		return ErrScreenIDRequired
	}
	if s.BasePrice < 0 {
		return ErrInvalidPrice
	}
	return nil
}
