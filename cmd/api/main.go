package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/api/handler"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/application"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/config"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/hold"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/showtime"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/infrastructure/kafka"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/infrastructure/memory"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/infrastructure/rabbitmq"
	redisinfra "github.com/sanosuguru/go-cinema-ticket-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/server"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/worker"
)

// storage は選択したドライバーのリポジトリ一式
type storage struct {
	txManager transaction.Manager
	bookings  booking.Repository
	showtimes showtime.Repository
	seats     seat.Directory
	ledger    hold.Ledger
	ping      handler.Pinger
	close     func() error
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logger.Warn(".env の読み込みに失敗", zap.Error(err))
	}
	cfg := config.Load()

	log := logger.NewLogger(cfg.Env)
	logger.Set(log)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("設定が不正です", zap.Error(err))
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("JWT_SECRET 未設定のため X-User-ID / X-User-Role ヘッダーで認証します（開発用）")
	}

	m := metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(cfg)
	if err != nil {
		logger.Fatal("ストレージの初期化に失敗", zap.Error(err))
	}
	defer store.close()
	ledger := application.NewInstrumentedLedger(store.ledger, m)

	// Redis は任意。接続できなければロックなし・プロセス内レート制限で動かす
	var (
		locker      worker.Locker
		rateLimiter middleware.Limiter
		redisPing   handler.Pinger
	)
	rdb := redisinfra.NewClient(&cfg.Redis)
	defer rdb.Close()
	if err := redisinfra.Ping(ctx, rdb); err != nil {
		logger.Warn("Redisに接続できません。分散ロックとレート制限の共有を無効化します", zap.Error(err))
	} else {
		locker = redisinfra.NewLockManager(rdb, m)
		rateLimiter = redisinfra.NewRateLimiter(rdb, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
		redisPing = redisinfra.Pinger(rdb)
	}

	opts := []application.BookingOption{
		application.WithHoldDuration(cfg.Reservation.HoldDuration),
		application.WithSweepBatchSize(cfg.Reservation.SweepBatchSize),
		application.WithMetrics(m),
	}

	var refunds *kafka.RefundPublisher
	if cfg.Kafka.Enabled() {
		refunds, err = kafka.NewRefundPublisher(&cfg.Kafka)
		if err != nil {
			logger.Fatal("Kafkaプロデューサーの初期化に失敗", zap.Error(err))
		}
		defer refunds.Close()
		opts = append(opts, application.WithRefunder(refunds))
	}

	if cfg.RabbitMQ.Enabled() {
		events, err := rabbitmq.NewBookingEventPublisher(cfg.RabbitMQ.URL)
		if err != nil {
			logger.Fatal("RabbitMQの初期化に失敗", zap.Error(err))
		}
		defer events.Close()
		opts = append(opts, application.WithPublisher(events))
	}

	bookingService := application.NewBookingService(
		store.txManager, store.bookings, store.showtimes, store.seats, ledger, opts...,
	)
	availabilityService := application.NewAvailabilityService(store.showtimes, store.seats, ledger, nil)

	if cfg.Kafka.Enabled() {
		consumer, err := kafka.NewPaymentConsumer(&cfg.Kafka, bookingService)
		if err != nil {
			logger.Fatal("Kafkaコンシューマーの初期化に失敗", zap.Error(err))
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logger.Error("決済イベントの購読が停止しました", zap.Error(err))
			}
		}()
	}

	sweeper := worker.NewExpirySweeper(bookingService, locker, cfg.Reservation.SweepInterval, cfg.Reservation.SweepLockTTL)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	e := server.NewRouter(server.Deps{
		Config:       cfg,
		Metrics:      m,
		Gatherer:     prometheus.DefaultGatherer,
		MetricsAuth:  middleware.LoadMetricsConfig(),
		Bookings:     bookingService,
		Availability: availabilityService,
		RateLimiter:  rateLimiter,
		HealthChecks: map[string]handler.Pinger{
			"database": store.ping,
			"redis":    redisPing,
		},
	})

	go func() {
		logger.Info("サーバーを起動します", zap.String("port", cfg.Server.Port), zap.String("storage", cfg.StorageDriver))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("サーバーをシャットダウンしています...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("サーバーシャットダウンエラー", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("サーバーが正常にシャットダウンしました")
}

func openStorage(cfg *config.Config) (*storage, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		catalog := memory.NewCatalog()
		memory.SeedDemo(catalog, "screen-1", "showtime-1", 10, 12, 1800, time.Now().Add(24*time.Hour))
		logger.Info("インメモリストレージで起動します（デモ上映回: showtime-1）")
		return &storage{
			txManager: memory.NewTxManager(),
			bookings:  memory.NewBookingRepository(),
			showtimes: catalog,
			seats:     catalog,
			ledger:    memory.NewHoldLedger(clock.System{}),
			close:     func() error { return nil },
		}, nil
	}

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := postgres.RunMigrations(db.DB, cfg.MigrationsPath); err != nil {
		db.Close()
		return nil, err
	}
	return &storage{
		txManager: postgres.NewTxManager(db),
		bookings:  postgres.NewBookingRepository(db),
		showtimes: postgres.NewShowtimeRepository(db),
		seats:     postgres.NewSeatRepository(db),
		ledger:    postgres.NewHoldLedger(db, clock.System{}),
		ping:      func(ctx context.Context) error { return postgres.Ping(ctx, db) },
		close:     db.Close,
	}, nil
}
