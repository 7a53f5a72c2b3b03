package application

import (
	"context"
	"fmt"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/hold"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/showtime"
)

// SeatAvailability は座席1つ分の空き状況
type SeatAvailability struct {
	Seat      *seat.Seat
	Available bool
	Price     int
}

// AvailabilityResult は座席選択の事前チェック結果
type AvailabilityResult struct {
	AllAvailable bool
	Unavailable  []string
}

// AvailabilityService は読み取り専用の空席照会
// 結果は照会時点のもので、予約の成功を保証しない
type AvailabilityService struct {
	showtimeRepo  showtime.Repository
	seatDirectory seat.Directory
	ledger        hold.Ledger
	pricing       booking.PricingPolicy
}

func NewAvailabilityService(sr showtime.Repository, dir seat.Directory, ledger hold.Ledger, pricing booking.PricingPolicy) *AvailabilityService {
	if pricing == nil {
		pricing = booking.DefaultPricing()
	}
	return &AvailabilityService{showtimeRepo: sr, seatDirectory: dir, ledger: ledger, pricing: pricing}
}

// GetShowtimeSeats はスクリーンの全座席を列・番号順に空き状況付きで返す
func (s *AvailabilityService) GetShowtimeSeats(ctx context.Context, showtimeID string) ([]*SeatAvailability, error) {
	st, layout, err := s.load(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	held, err := s.ledger.HeldSeatIDs(ctx, st.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("保持座席取得に失敗: %w", err)
	}
	heldSet := toSet(held)

	seat.SortByPosition(layout)
	result := make([]*SeatAvailability, len(layout))
	for i, se := range layout {
		_, taken := heldSet[se.ID]
		result[i] = &SeatAvailability{
			Seat:      se,
			Available: !taken,
			Price:     s.pricing.SeatPrice(st, se),
		}
	}
	return result, nil
}

// CheckAvailability は指定座席のうち保持されているものを返す
func (s *AvailabilityService) CheckAvailability(ctx context.Context, showtimeID string, seatIDs []string) (*AvailabilityResult, error) {
	if err := booking.ValidateSeatSelection(seatIDs); err != nil {
		return nil, err
	}
	st, layout, err := s.load(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	idx := seat.IndexByID(layout)
	for _, id := range seatIDs {
		if _, ok := idx[id]; !ok {
			return nil, fmt.Errorf("%w: %s", booking.ErrSeatNotInScreen, id)
		}
	}

	held, err := s.ledger.HeldSeatIDs(ctx, st.ID, seatIDs)
	if err != nil {
		return nil, fmt.Errorf("保持座席取得に失敗: %w", err)
	}
	return &AvailabilityResult{
		AllAvailable: len(held) == 0,
		Unavailable:  hold.NormalizeSeatIDs(held),
	}, nil
}

// CountAvailable は空席数を返す
func (s *AvailabilityService) CountAvailable(ctx context.Context, showtimeID string) (int, error) {
	st, layout, err := s.load(ctx, showtimeID)
	if err != nil {
		return 0, err
	}
	held, err := s.ledger.HeldSeatIDs(ctx, st.ID, nil)
	if err != nil {
		return 0, fmt.Errorf("保持座席取得に失敗: %w", err)
	}
	heldSet := toSet(held)
	count := 0
	for _, se := range layout {
		if _, taken := heldSet[se.ID]; !taken {
			count++
		}
	}
	return count, nil
}

func (s *AvailabilityService) load(ctx context.Context, showtimeID string) (*showtime.Showtime, []*seat.Seat, error) {
	st, err := s.showtimeRepo.GetByID(ctx, showtimeID)
	if err != nil {
		return nil, nil, err
	}
	layout, err := s.seatDirectory.GetByScreenID(ctx, st.ScreenID)
	if err != nil {
		return nil, nil, fmt.Errorf("座席取得に失敗: %w", err)
	}
	return st, layout, nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
