package hold

import (
	"sort"
	"time"
)

// Status は座席保持の状態を表す
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
)

// Hold は上映回の1座席に対する排他的な保持を表す
// 同じ (ShowtimeID, SeatID) に有効な Hold は常に高々1件
type Hold struct {
	ShowtimeID string
	SeatID     string
	BookingID  string
	Status     Status
	// ExpiresAt は pending の間のみ設定され、確定時に nil になる
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// IsActive は now 時点で保持が有効かを返す
// 期限切れの pending は物理的に残っていても存在しないものとして扱う
func (h *Hold) IsActive(now time.Time) bool {
	if h.Status == StatusConfirmed {
		return true
	}
	return h.ExpiresAt != nil && h.ExpiresAt.After(now)
}

// IsExpired は pending のまま期限を過ぎているかを返す
func (h *Hold) IsExpired(now time.Time) bool {
	return h.Status == StatusPending && !h.IsActive(now)
}

// NormalizeSeatIDs は重複を除いてソートした座席IDを返す
// 複数座席の行ロックを常に同じ順序で取得するために使う
func NormalizeSeatIDs(seatIDs []string) []string {
	seen := make(map[string]struct{}, len(seatIDs))
	out := make([]string, 0, len(seatIDs))
	for _, id := range seatIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Difference は requested のうち got に含まれないものを返す
func Difference(requested, got []string) []string {
	have := make(map[string]struct{}, len(got))
	for _, id := range got {
		have[id] = struct{}{}
	}
	var missing []string
	for _, id := range requested {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
