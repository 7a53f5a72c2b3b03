package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/application"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/config"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/infrastructure/memory"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/server"
)

const (
	showtimeID   = "showtime-1"
	holdDuration = 10 * time.Minute
)

var startTime = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

// TestServer はE2Eテスト用のサーバー
// インメモリのストレージと偽の時計で、HTTPから台帳まで通しで動かす
type TestServer struct {
	Echo     *echo.Echo
	Clock    *clock.Fake
	Bookings *application.BookingService
	Registry *prometheus.Registry
}

type serverOption func(*config.Config)

func withAuth(secret string) serverOption {
	return func(c *config.Config) { c.Auth = config.AuthConfig{JWTSecret: secret, Issuer: "cinema-e2e"} }
}

func withRateLimit(perMinute, burst int) serverOption {
	return func(c *config.Config) {
		c.RateLimit = config.RateLimitConfig{RequestsPerMinute: perMinute, Burst: burst}
	}
}

// NewTestServer は3列×4席のデモ上映回を持つサーバーを作成する
func NewTestServer(t *testing.T, opts ...serverOption) *TestServer {
	t.Helper()
	cfg := &config.Config{
		RateLimit: config.RateLimitConfig{RequestsPerMinute: 600, Burst: 100},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	clk := clock.NewFake(startTime)
	catalog := memory.NewCatalog()
	memory.SeedDemo(catalog, "screen-1", showtimeID, 3, 4, 1800, startTime.Add(24*time.Hour))

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	ledger := application.NewInstrumentedLedger(memory.NewHoldLedger(clk), m)

	bookings := application.NewBookingService(
		memory.NewTxManager(), memory.NewBookingRepository(), catalog, catalog, ledger,
		application.WithClock(clk),
		application.WithHoldDuration(holdDuration),
		application.WithMetrics(m),
	)
	availability := application.NewAvailabilityService(catalog, catalog, ledger, nil)

	e := server.NewRouter(server.Deps{
		Config:       cfg,
		Metrics:      m,
		Gatherer:     reg,
		Bookings:     bookings,
		Availability: availability,
	})
	return &TestServer{Echo: e, Clock: clk, Bookings: bookings, Registry: reg}
}

// Request はHTTPリクエストを実行
func (s *TestServer) Request(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		reqBody, _ = json.Marshal(body)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func customer(userID string) map[string]string {
	return map[string]string{middleware.HeaderUserID: userID}
}

func paymentGateway() map[string]string {
	return map[string]string{middleware.HeaderUserID: "payment-gateway", middleware.HeaderUserRole: string(middleware.RoleService)}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func availableCount(t *testing.T, s *TestServer) int {
	t.Helper()
	rec := s.Request(http.MethodGet, "/api/v1/showtimes/"+showtimeID+"/seats/available/count", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return int(decode(t, rec)["available_count"].(float64))
}

func createBooking(s *TestServer, userID string, seatIDs ...string) *httptest.ResponseRecorder {
	return s.Request(http.MethodPost, "/api/v1/bookings", map[string]interface{}{
		"showtime_id": showtimeID,
		"seat_ids":    seatIDs,
	}, customer(userID))
}

func paymentCallback(s *TestServer, typ, bookingID string) *httptest.ResponseRecorder {
	return s.Request(http.MethodPost, "/api/v1/payments/callback", map[string]interface{}{
		"type":       typ,
		"payment_id": "pay-" + bookingID,
		"booking_id": bookingID,
		"amount":     3600,
	}, paymentGateway())
}
