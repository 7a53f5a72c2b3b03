package seat

import (
	"sort"
	"strconv"
	"time"
)

// Tier は座席の価格区分を表す
type Tier string

const (
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
	TierVIP      Tier = "vip"
)

// Seat はスクリーン上の物理座席を表す。予約状態は持たない
type Seat struct {
	ID        string
	ScreenID  string
	RowLabel  string
	Number    int
	Tier      Tier
	CreatedAt time.Time
}

// Label は "A-12" 形式の表示名を返す
func (s *Seat) Label() string {
	return s.RowLabel + "-" + strconv.Itoa(s.Number)
}

// Validate は座席の検証を行う
func (s *Seat) Validate() error {
	if s.ScreenID == "" {
		return ErrScreenIDRequired
	}
	if s.RowLabel == "" || s.Number <= 0 {
		return ErrInvalidPosition
	}
	switch s.Tier {
	case TierStandard, TierPremium, TierVIP:
	default:
		return ErrInvalidTier
	}
	return nil
}

// SortByPosition は座席を (列, 番号) の順に並べ替える
func SortByPosition(seats []*Seat) {
	sort.SliceStable(seats, func(i, j int) bool {
		if seats[i].RowLabel != seats[j].RowLabel {
			return seats[i].RowLabel < seats[j].RowLabel
		}
		return seats[i].Number < seats[j].Number
	})
}

// IndexByID は座席IDをキーにしたマップを返す
func IndexByID(seats []*Seat) map[string]*Seat {
	m := make(map[string]*Seat, len(seats))
	for _, s := range seats {
		m[s.ID] = s
	}
	return m
}
