package booking

import "fmt"

// MaxSeatsPerBooking は1予約あたりの座席上限
const MaxSeatsPerBooking = 10

// ValidateSeatSelection は座席集合が空でなく重複がないことを検証する
func ValidateSeatSelection(seatIDs []string) error {
	if len(seatIDs) == 0 {
		return ErrSeatIDsRequired
	}
	if len(seatIDs) > MaxSeatsPerBooking {
		return ErrTooManySeats
	}
	seen := make(map[string]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		if id == "" {
			return ErrSeatIDsRequired
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateSeatID, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
