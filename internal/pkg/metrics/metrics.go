package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 予約作成の試行数（status: success, conflict, invalid, error）
	ReservationsTotal *prometheus.CounterVec

	// 予約の状態遷移数（status: confirmed, expired, cancelled）
	BookingTransitionsTotal *prometheus.CounterVec

	// 座席台帳の操作時間（operation: try_reserve/confirm/release/held/purge, status: success/conflict/error）
	LedgerOperationDuration *prometheus.HistogramVec

	// スイープで期限切れにした予約数
	ExpiredBookingsSwept prometheus.Counter

	// 決済イベントの処理結果（type, outcome）
	PaymentEventsTotal *prometheus.CounterVec

	// 分散ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ReservationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservations_total",
				Help: "Total number of booking creation attempts",
			},
			[]string{"status"},
		),
		BookingTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_transitions_total",
				Help: "Total number of booking state transitions",
			},
			[]string{"status"},
		),
		LedgerOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_operation_duration_seconds",
				Help:    "Time spent on seat hold ledger operations",
				Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		ExpiredBookingsSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "expired_bookings_swept_total",
				Help: "Total number of bookings expired by the sweeper",
			},
		),
		PaymentEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_events_total",
				Help: "Total number of payment events handled",
			},
			[]string{"type", "outcome"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReservationsTotal,
		m.BookingTransitionsTotal,
		m.LedgerOperationDuration,
		m.ExpiredBookingsSwept,
		m.PaymentEventsTotal,
		m.DistributedLockDuration,
	)

	return m
}

// ObserveLedger は台帳操作の所要時間を記録する。m が nil の場合は何もしない
func (m *Metrics) ObserveLedger(operation, status string, start time.Time) {
	if m == nil {
		return
	}
	m.LedgerOperationDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}

// IncReservation は予約作成の結果を数える
func (m *Metrics) IncReservation(status string) {
	if m == nil {
		return
	}
	m.ReservationsTotal.WithLabelValues(status).Inc()
}

// IncTransition は予約の状態遷移を数える
func (m *Metrics) IncTransition(status string) {
	if m == nil {
		return
	}
	m.BookingTransitionsTotal.WithLabelValues(status).Inc()
}

// AddSwept はスイープで期限切れにした件数を加算する
func (m *Metrics) AddSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ExpiredBookingsSwept.Add(float64(n))
}

// IncPaymentEvent は決済イベントの処理結果を数える
func (m *Metrics) IncPaymentEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.PaymentEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// ObserveLock は分散ロック操作の所要時間を記録する
func (m *Metrics) ObserveLock(operation, status string, start time.Time) {
	if m == nil {
		return
	}
	m.DistributedLockDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
