package main

import (
	"context"
	"flag"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/config"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/showtime"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/logger"
)

// PostgreSQL にスクリーン・座席・上映回を投入する
func main() {
	screenName := flag.String("screen", "スクリーン1", "スクリーン名")
	rows := flag.Int("rows", 10, "列数")
	perRow := flag.Int("per-row", 12, "1列あたりの座席数")
	movieID := flag.String("movie", "movie-demo", "作品ID")
	basePrice := flag.Int("price", 1800, "基本料金")
	startIn := flag.Duration("start-in", 24*time.Hour, "上映開始までの時間")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		logger.Warn(".env の読み込みに失敗", zap.Error(err))
	}
	cfg := config.Load()
	logger.Set(logger.NewLogger(cfg.Env))
	defer logger.Sync()

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("DB接続エラー", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.RunMigrations(db.DB, cfg.MigrationsPath); err != nil {
		logger.Fatal("マイグレーションエラー", zap.Error(err))
	}

	ctx := context.Background()
	seatRepo := postgres.NewSeatRepository(db)
	showtimeRepo := postgres.NewShowtimeRepository(db)

	screenID, err := seatRepo.CreateScreen(ctx, *screenName)
	if err != nil {
		logger.Fatal("スクリーン作成エラー", zap.Error(err))
	}
	seats := seat.GridLayout(screenID, *rows, *perRow)
	if err := seatRepo.CreateBulk(ctx, seats); err != nil {
		logger.Fatal("座席作成エラー", zap.Error(err))
	}

	st := &showtime.Showtime{
		MovieID:   *movieID,
		ScreenID:  screenID,
		StartTime: time.Now().Add(*startIn),
		BasePrice: *basePrice,
	}
	if err := showtimeRepo.Create(ctx, st); err != nil {
		logger.Fatal("上映回作成エラー", zap.Error(err))
	}

	logger.Info("初期データを投入しました",
		zap.String("screen_id", screenID),
		zap.String("showtime_id", st.ID),
		zap.Int("seats", len(seats)),
	)
}
