package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/api"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/hold"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/metrics"
)

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	orig := logger.Get()
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(orig) })
	return logs
}

func TestSetupMiddleware(t *testing.T) {
	e := echo.New()
	SetupMiddleware(e)
	e.GET("/api/v1/showtimes/:id/seats", func(c echo.Context) error {
		return c.String(http.StatusOK, "seats")
	})
	e.GET("/panic", func(c echo.Context) error {
		panic("boom")
	})

	e.POST("/api/v1/bookings", func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	})

	t.Run("通常のリクエストにリクエストIDとセキュリティヘッダーが付く", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/showtimes/st-1/seats", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "seats", rec.Body.String())
		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
		assert.Equal(t, "nosniff", rec.Header().Get(echo.HeaderXContentTypeOptions))
	})

	t.Run("大きすぎるボディは413", func(t *testing.T) {
		observeLogs(t)
		body := strings.NewReader(`{"seat_ids":["` + strings.Repeat("A", 70*1024) + `"]}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", body)
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("パニックは500に変換される", func(t *testing.T) {
		observeLogs(t)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("CORSプリフライトで冪等キーヘッダーを許可", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/bookings", nil)
		req.Header.Set(echo.HeaderOrigin, "https://cinema.example.com")
		req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
		assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowHeaders), HeaderIdempotencyKey)
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{name: "未指定なら生成する", incoming: ""},
		{name: "指定済みなら引き継ぐ", incoming: "req-from-gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.Use(RequestIDMiddleware())
			e.GET("/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.incoming != "" {
				req.Header.Set(echo.HeaderXRequestID, tt.incoming)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			got := rec.Header().Get(echo.HeaderXRequestID)
			require.NotEmpty(t, got)
			if tt.incoming != "" {
				assert.Equal(t, tt.incoming, got)
			}
		})
	}

	assert.NotEqual(t, generateRequestID(), generateRequestID())
}

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name      string
		handler   echo.HandlerFunc
		wantCode  int
		wantLevel zapcore.Level
	}{
		{
			name:      "成功はInfo",
			handler:   func(c echo.Context) error { return c.NoContent(http.StatusCreated) },
			wantCode:  http.StatusCreated,
			wantLevel: zapcore.InfoLevel,
		},
		{
			name:      "座席競合はWarn",
			handler:   func(c echo.Context) error { return &hold.SeatsUnavailableError{SeatIDs: []string{"A1"}} },
			wantCode:  http.StatusConflict,
			wantLevel: zapcore.WarnLevel,
		},
		{
			name:      "ストレージ障害はError",
			handler:   func(c echo.Context) error { return assert.AnError },
			wantCode:  http.StatusInternalServerError,
			wantLevel: zapcore.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := observeLogs(t)
			e := echo.New()
			e.HTTPErrorHandler = api.CustomHTTPErrorHandler
			e.Use(RequestIDMiddleware())
			e.Use(RequestLogger())
			e.POST("/api/v1/bookings", tt.handler)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
			req.Header.Set(echo.HeaderXRequestID, "req-42")
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			access := logs.FilterField(zap.String("method", http.MethodPost)).FilterField(zap.Int("status", tt.wantCode)).All()
			require.Len(t, access, 1)
			assert.Equal(t, tt.wantLevel, access[0].Level)
			assert.Equal(t, "req-42", access[0].ContextMap()["request_id"])
		})
	}
}

func TestRequestLogger_AttachesContextLogger(t *testing.T) {
	logs := observeLogs(t)
	e := echo.New()
	e.Use(RequestIDMiddleware())
	e.Use(RequestLogger())
	e.GET("/bookings/:id", func(c echo.Context) error {
		logger.FromContext(c.Request().Context()).Info("handler log")
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/bookings/b-1", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-7")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	entries := logs.FilterMessage("handler log").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-7", entries[0].ContextMap()["request_id"])
}

func TestPrometheusMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		route    string
		target   string
		handler  echo.HandlerFunc
		wantCode string
	}{
		{
			name:     "成功",
			route:    "/api/v1/showtimes/:id/seats",
			target:   "/api/v1/showtimes/st-1/seats",
			handler:  func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
			wantCode: "200",
		},
		{
			name:     "HTTPエラー",
			route:    "/api/v1/bookings",
			target:   "/api/v1/bookings",
			handler:  func(c echo.Context) error { return echo.NewHTTPError(http.StatusBadRequest, "bad request") },
			wantCode: "400",
		},
		{
			name:     "ドメインエラーはハンドラーが決めたステータス",
			route:    "/api/v1/bookings/:id",
			target:   "/api/v1/bookings/b-1",
			handler:  func(c echo.Context) error { return booking.ErrBookingNotFound },
			wantCode: "404",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.NewWithRegistry(prometheus.NewRegistry())
			e := echo.New()
			e.HTTPErrorHandler = api.CustomHTTPErrorHandler
			e.Use(PrometheusMiddleware(m))
			e.GET(tt.route, tt.handler)

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, tt.wantCode, strconv.Itoa(rec.Code))
			assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, tt.route, tt.wantCode)))
			assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestDuration))
		})
	}
}
