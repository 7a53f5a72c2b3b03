package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/api"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/api/middleware"
)

// NewTestEcho は本番と同じバリデーターとエラーハンドラーを持つEchoを作成する
func NewTestEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	return e
}

// AsIdentity は認証を通さずに呼び出し元を固定するミドルウェア。userID が空なら未認証のまま
func AsIdentity(userID string, role middleware.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if userID != "" {
				middleware.SetIdentity(c, middleware.Identity{UserID: userID, Role: role})
			}
			return next(c)
		}
	}
}
