package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/hold"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/showtime"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"座席競合", &hold.SeatsUnavailableError{SeatIDs: []string{"A1"}}, http.StatusConflict},
		{"入力エラー", booking.ErrDuplicateSeatID, http.StatusBadRequest},
		{"冪等性キー競合", booking.ErrIdempotencyKeyConflict, http.StatusConflict},
		{"予約なし", fmt.Errorf("取得失敗: %w", booking.ErrBookingNotFound), http.StatusNotFound},
		{"上映回なし", showtime.ErrShowtimeNotFound, http.StatusNotFound},
		{"権限なし", booking.ErrForbidden, http.StatusForbidden},
		{"保持期限切れ", booking.ErrHoldExpired, http.StatusGone},
		{"終了済み", booking.ErrAlreadyTerminal, http.StatusConflict},
		{"HTTPError", echo.NewHTTPError(http.StatusTooManyRequests, "多すぎ"), http.StatusTooManyRequests},
		{"不明なエラー", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestCustomHTTPErrorHandler(t *testing.T) {
	handle := func(err error) (*httptest.ResponseRecorder, ErrorResponse) {
		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil), rec)
		CustomHTTPErrorHandler(err, c)

		var resp ErrorResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		return rec, resp
	}

	t.Run("座席競合は競合座席IDを返す", func(t *testing.T) {
		rec, resp := handle(fmt.Errorf("予約作成: %w", &hold.SeatsUnavailableError{SeatIDs: []string{"A1", "A3"}}))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, []string{"A1", "A3"}, resp.UnavailableSeatIDs)
		assert.Equal(t, hold.ErrSeatsUnavailable.Error(), resp.Error)
	})

	t.Run("HTTPErrorのメッセージを返す", func(t *testing.T) {
		rec, resp := handle(echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "無効なリクエスト", resp.Error)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("内部エラーの詳細は返さない", func(t *testing.T) {
		rec, resp := handle(errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "内部サーバーエラー", resp.Error)
		assert.NotContains(t, rec.Body.String(), "pq")
	})

	t.Run("コミット済みのレスポンスには書き込まない", func(t *testing.T) {
		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		require.NoError(t, c.String(http.StatusOK, "done"))

		CustomHTTPErrorHandler(errors.New("late"), c)

		assert.Equal(t, "done", rec.Body.String())
	})
}

func TestCustomValidator(t *testing.T) {
	type req struct {
		ShowtimeID string   `json:"showtime_id" validate:"required"`
		SeatIDs    []string `json:"seat_ids" validate:"required,min=1,dive,required"`
		Reason     string   `json:"reason" validate:"max=5"`
		Type       string   `json:"type" validate:"omitempty,oneof=succeeded failed"`
	}
	v := NewValidator()

	assert.NoError(t, v.Validate(&req{ShowtimeID: "st-1", SeatIDs: []string{"A1"}}))

	tests := []struct {
		name string
		in   req
		want string
	}{
		{name: "必須項目はJSONのフィールド名で返す", in: req{SeatIDs: []string{"A1"}}, want: "showtime_id は必須です"},
		{name: "空の座席リスト", in: req{ShowtimeID: "st-1", SeatIDs: []string{}}, want: "seat_ids は 1 件以上指定してください"},
		{name: "空の座席ID", in: req{ShowtimeID: "st-1", SeatIDs: []string{""}}, want: "seat_ids[0] は必須です"},
		{name: "文字数超過", in: req{ShowtimeID: "st-1", SeatIDs: []string{"A1"}, Reason: "too long"}, want: "reason は 5 文字以内にしてください"},
		{name: "列挙値以外", in: req{ShowtimeID: "st-1", SeatIDs: []string{"A1"}, Type: "refunded"}, want: "type は [succeeded failed] のいずれかを指定してください"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.in)

			var he *echo.HTTPError
			require.ErrorAs(t, err, &he)
			assert.Equal(t, http.StatusBadRequest, he.Code)
			assert.Equal(t, tt.want, he.Message)
		})
	}
}
