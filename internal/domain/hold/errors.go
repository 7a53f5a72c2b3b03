package hold

import (
	"errors"
	"strings"
)

// Hold ドメインのエラー定義
var (
	ErrSeatsUnavailable     = errors.New("座席は既に保持されています")
	ErrHoldNotFound         = errors.New("保持が見つかりません")
	ErrHoldExpired          = errors.New("保持の有効期限が切れています")
	ErrHoldAlreadyConfirmed = errors.New("保持は既に確定されています")
	ErrNoSeats              = errors.New("座席が指定されていません")
)

// SeatsUnavailableError は保持できなかった座席の一覧を持つ
type SeatsUnavailableError struct {
	SeatIDs []string
}

func (e *SeatsUnavailableError) Error() string {
	return ErrSeatsUnavailable.Error() + ": " + strings.Join(e.SeatIDs, ",")
}

// Is は errors.Is(err, ErrSeatsUnavailable) を成立させる
func (e *SeatsUnavailableError) Is(target error) bool {
	return target == ErrSeatsUnavailable
}

// UnavailableSeatIDs は err が SeatsUnavailableError なら競合座席を返す
func UnavailableSeatIDs(err error) ([]string, bool) {
	var sue *SeatsUnavailableError
	if errors.As(err, &sue) {
		return sue.SeatIDs, true
	}
	return nil, false
}
