package booking

import (
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/showtime"
)

// PricingPolicy は上映回と座席から1席の価格を決める
type PricingPolicy interface {
	SeatPrice(st *showtime.Showtime, s *seat.Seat) int
}

// TierPricing は基本価格に座席区分ごとの倍率（%）を掛ける
type TierPricing struct {
	Percent map[seat.Tier]int
}

// DefaultPricing は standard 100%, premium 150%, vip 200%
func DefaultPricing() *TierPricing {
	return &TierPricing{Percent: map[seat.Tier]int{
		seat.TierStandard: 100,
		seat.TierPremium:  150,
		seat.TierVIP:      200,
	}}
}

func (p *TierPricing) SeatPrice(st *showtime.Showtime, s *seat.Seat) int {
	pct, ok := p.Percent[s.Tier]
	if !ok {
		pct = 100
	}
	return st.BasePrice * pct / 100
}

// PriceItems は要求順に座席価格を計算する
func PriceItems(policy PricingPolicy, st *showtime.Showtime, seats []*seat.Seat) []Item {
	items := make([]Item, len(seats))
	for i, s := range seats {
		items[i] = Item{SeatID: s.ID, Price: policy.SeatPrice(st, s)}
	}
	return items
}
