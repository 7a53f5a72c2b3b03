package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/api"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/api/handler"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/application"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/config"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/metrics"
)

// Deps はルーターが必要とする依存
type Deps struct {
	Config       *config.Config
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	MetricsAuth  *middleware.MetricsConfig
	Bookings     *application.BookingService
	Availability *application.AvailabilityService
	// RateLimiter は共有レート制限。nil ならプロセス内のみ
	RateLimiter  middleware.Limiter
	HealthChecks map[string]handler.Pinger
}

// NewRouter はHTTPルーティングを組み立てる
func NewRouter(d Deps) *echo.Echo {
	cfg := d.Config

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	middleware.SetupMiddleware(e)
	if d.Metrics != nil {
		e.Use(middleware.PrometheusMiddleware(d.Metrics))
	}

	healthHandler := handler.NewHealthHandler(d.HealthChecks)
	showtimeHandler := handler.NewShowtimeHandler(d.Availability)
	bookingHandler := handler.NewBookingHandler(d.Bookings)
	paymentHandler := handler.NewPaymentHandler(d.Bookings)

	e.GET("/health", healthHandler.Check)
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})),
			middleware.MetricsBasicAuth(d.MetricsAuth))
	}

	v1 := e.Group("/api/v1")

	showtimes := v1.Group("/showtimes")
	showtimes.GET("/:id/seats", showtimeHandler.GetSeats)
	showtimes.GET("/:id/seats/available/count", showtimeHandler.CountAvailable)
	showtimes.POST("/:id/seats/availability", showtimeHandler.CheckAvailability)

	auth := middleware.Authenticate(cfg.Auth)
	limiter := middleware.RateLimit(d.RateLimiter,
		middleware.NewMemoryLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst))

	bookings := v1.Group("/bookings", auth, middleware.RequireRole(middleware.RoleCustomer, middleware.RoleAdmin))
	bookings.POST("", bookingHandler.Create, limiter)
	bookings.GET("/:id", bookingHandler.GetByID)
	bookings.POST("/:id/cancel", bookingHandler.Cancel)

	payments := v1.Group("/payments", auth, middleware.RequireRole(middleware.RoleService, middleware.RoleAdmin))
	payments.POST("/callback", paymentHandler.Callback)

	return e
}
