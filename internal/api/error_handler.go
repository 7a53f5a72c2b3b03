package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/hold"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/showtime"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error              string   `json:"error"`
	Code               int      `json:"code,omitempty"`
	Details            string   `json:"details,omitempty"`
	UnavailableSeatIDs []string `json:"unavailable_seat_ids,omitempty"`
}

// StatusFor はドメインエラーに対応するHTTPステータスを返す
func StatusFor(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, hold.ErrSeatsUnavailable),
		errors.Is(err, booking.ErrAlreadyTerminal),
		errors.Is(err, booking.ErrIdempotencyKeyConflict):
		return http.StatusConflict
	case errors.Is(err, booking.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrBookingNotFound),
		errors.Is(err, showtime.ErrShowtimeNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, booking.ErrHoldExpired):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := StatusFor(err)
	resp := ErrorResponse{Code: code}

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		if m, ok := he.Message.(string); ok {
			resp.Error = m
		} else {
			resp.Error = http.StatusText(code)
		}
	case code >= 500:
		// 内部エラーの詳細は返さない
		resp.Error = "内部サーバーエラー"
	default:
		resp.Error = err.Error()
	}
	if ids, ok := hold.UnavailableSeatIDs(err); ok {
		resp.Error = hold.ErrSeatsUnavailable.Error()
		resp.UnavailableSeatIDs = ids
	}

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.FromContext(c.Request().Context()).Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, resp)
	}
	if err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
