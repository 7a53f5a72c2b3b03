package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// maxBodySize は予約・決済リクエストの上限。座席IDの配列でも十分な大きさ
const maxBodySize = "64K"

// SetupMiddleware は全ルート共通のミドルウェアを設定する
// ログより前にリクエストIDを決め、パニックはログの内側で500に変換する
func SetupMiddleware(e *echo.Echo) {
	e.Use(RequestIDMiddleware())
	e.Use(RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(maxBodySize))
	e.Use(middleware.Secure())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.POST},
		AllowHeaders: []string{
			echo.HeaderContentType,
			echo.HeaderAuthorization,
			HeaderIdempotencyKey,
			HeaderUserID,
			HeaderUserRole,
		},
		ExposeHeaders: []string{echo.HeaderXRequestID, "Retry-After"},
	}))
}
