package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/logger"
)

// SweepLockKey は複数インスタンス間でスイープを1つに絞るロックのキー
const SweepLockKey = "sweeper:expired-bookings"

// BookingSweeper は期限切れの pending 予約を終了させる
type BookingSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Locker はロックを取得できた場合だけ fn を実行する
type Locker interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error)
}

// ExpirySweeper は期限切れ予約を定期的に回収するワーカー
// 期限切れの保持は照会・予約時点で既に空席扱いのため、スイープの遅れは正しさに影響しない
type ExpirySweeper struct {
	sweeper  BookingSweeper
	locker   Locker
	interval time.Duration
	lockTTL  time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewExpirySweeper は新しいスイーパーを作成する。locker が nil なら単一インスタンスとして動く
func NewExpirySweeper(s BookingSweeper, locker Locker, interval, lockTTL time.Duration) *ExpirySweeper {
	return &ExpirySweeper{
		sweeper:  s,
		locker:   locker,
		interval: interval,
		lockTTL:  lockTTL,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start はスイーパーを開始
func (w *ExpirySweeper) Start(ctx context.Context) {
	logger.Info("期限切れ予約スイーパー開始",
		zap.Duration("interval", w.interval),
		zap.Bool("distributed_lock", w.locker != nil),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("期限切れ予約スイーパー停止（コンテキストキャンセル）")
			return
		case <-w.stopCh:
			logger.Info("期限切れ予約スイーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop はスイーパーを停止
func (w *ExpirySweeper) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *ExpirySweeper) sweep(ctx context.Context) {
	log := logger.Get()

	if w.locker == nil {
		w.run(ctx)
		return
	}
	ran, err := w.locker.TryWithLock(ctx, SweepLockKey, w.lockTTL, func(ctx context.Context) error {
		w.run(ctx)
		return nil
	})
	if err != nil {
		// ロックが取れない間も、期限切れの保持は新しい予約に引き継がれる
		log.Warn("スイープ用ロックの取得に失敗", zap.Error(err))
		return
	}
	if !ran {
		log.Debug("他のインスタンスがスイープ中")
	}
}

func (w *ExpirySweeper) run(ctx context.Context) {
	log := logger.Get()
	log.Debug("期限切れ予約のスイープ開始")

	count, err := w.sweeper.SweepExpired(ctx)
	if err != nil {
		log.Error("期限切れ予約のスイープで一部失敗", zap.Int("count", count), zap.Error(err))
		return
	}
	if count > 0 {
		log.Info("期限切れ予約を回収", zap.Int("count", count))
	} else {
		log.Debug("期限切れ予約なし")
	}
}
