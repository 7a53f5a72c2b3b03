package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/metrics"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

// 所有者確認と削除をアトミックに実行する
const releaseScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// DistributedLock は Redis を使用した分散ロック
// 座席の排他は台帳が担い、このロックは複数インスタンスのスイープ重複を避けるためだけに使う
type DistributedLock struct {
	client  *redis.Client
	key     string
	value   string
	metrics *metrics.Metrics
}

// LockManager は分散ロックを管理する
type LockManager struct {
	client   *redis.Client
	metrics  *metrics.Metrics
	newToken func() string
}

func NewLockManager(client *redis.Client, m *metrics.Metrics) *LockManager {
	return &LockManager{client: client, metrics: m, newToken: uuid.NewString}
}

// AcquireLock はロックを取得する
func (m *LockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*DistributedLock, error) {
	start := time.Now()
	lockKey := fmt.Sprintf("lock:%s", key)
	lockValue := m.newToken()

	// SetNX を使用してロックを取得（キーが存在しない場合のみ設定）
	ok, err := m.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		m.metrics.ObserveLock("acquire", "error", start)
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	if !ok {
		m.metrics.ObserveLock("acquire", "contended", start)
		return nil, ErrLockNotAcquired
	}
	m.metrics.ObserveLock("acquire", "success", start)

	return &DistributedLock{
		client:  m.client,
		key:     lockKey,
		value:   lockValue,
		metrics: m.metrics,
	}, nil
}

// TryWithLock はロックを取得できた場合だけ fn を実行する
// 他のインスタンスが保持中なら fn を実行せず false を返す
func (m *LockManager) TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	lock, err := m.AcquireLock(ctx, key, ttl)
	if errors.Is(err, ErrLockNotAcquired) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			// TTL 切れで他に渡った場合も含む
			logger.FromContext(ctx).Warn("ロック解放に失敗", zap.String("key", key), zap.Error(err))
		}
	}()
	return true, fn(ctx)
}

// Release はロックを解放する
func (l *DistributedLock) Release(ctx context.Context) error {
	start := time.Now()
	result, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.value).Int()
	if err != nil {
		l.metrics.ObserveLock("release", "error", start)
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if result == 0 {
		l.metrics.ObserveLock("release", "not_owned", start)
		return ErrLockNotOwned
	}
	l.metrics.ObserveLock("release", "success", start)
	return nil
}
