package seat

// GridLayout は rows 列 × perRow 席の座席を作る。列は A から始まり、
// 最後の列は vip、その手前は premium になる。IDは付与しない
func GridLayout(screenID string, rows, perRow int) []*Seat {
	seats := make([]*Seat, 0, rows*perRow)
	for r := 0; r < rows; r++ {
		label := string(rune('A' + r))
		tier := TierStandard
		switch {
		case r == rows-1:
			tier = TierVIP
		case r == rows-2:
			tier = TierPremium
		}
		for n := 1; n <= perRow; n++ {
			seats = append(seats, &Seat{ScreenID: screenID, RowLabel: label, Number: n, Tier: tier})
		}
	}
	return seats
}
