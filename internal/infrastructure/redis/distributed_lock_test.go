package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockLockManager(t *testing.T) (*LockManager, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	m := NewLockManager(client, nil)
	m.newToken = func() string { return "token-1" }
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return m, mock
}

func TestLockManager_AcquireLock(t *testing.T) {
	ctx := context.Background()

	t.Run("ロックを取得できる", func(t *testing.T) {
		m, mock := newMockLockManager(t)
		mock.ExpectSetNX("lock:sweeper", "token-1", 5*time.Second).SetVal(true)

		lock, err := m.AcquireLock(ctx, "sweeper", 5*time.Second)

		require.NoError(t, err)
		assert.Equal(t, "lock:sweeper", lock.key)
	})

	t.Run("保持中のロックは取得できない", func(t *testing.T) {
		m, mock := newMockLockManager(t)
		mock.ExpectSetNX("lock:sweeper", "token-1", 5*time.Second).SetVal(false)

		lock, err := m.AcquireLock(ctx, "sweeper", 5*time.Second)

		assert.ErrorIs(t, err, ErrLockNotAcquired)
		assert.Nil(t, lock)
	})

	t.Run("Redisエラーはラップして返す", func(t *testing.T) {
		m, mock := newMockLockManager(t)
		mock.ExpectSetNX("lock:sweeper", "token-1", 5*time.Second).SetErr(errors.New("connection refused"))

		_, err := m.AcquireLock(ctx, "sweeper", 5*time.Second)

		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrLockNotAcquired)
	})
}

func TestDistributedLock_Release(t *testing.T) {
	ctx := context.Background()

	t.Run("所有者は解放できる", func(t *testing.T) {
		m, mock := newMockLockManager(t)
		mock.ExpectSetNX("lock:k", "token-1", time.Second).SetVal(true)
		mock.ExpectEval(releaseScript, []string{"lock:k"}, "token-1").SetVal(int64(1))

		lock, err := m.AcquireLock(ctx, "k", time.Second)
		require.NoError(t, err)

		assert.NoError(t, lock.Release(ctx))
	})

	t.Run("期限切れで他者に渡ったロックは解放できない", func(t *testing.T) {
		m, mock := newMockLockManager(t)
		mock.ExpectSetNX("lock:k", "token-1", time.Second).SetVal(true)
		mock.ExpectEval(releaseScript, []string{"lock:k"}, "token-1").SetVal(int64(0))

		lock, err := m.AcquireLock(ctx, "k", time.Second)
		require.NoError(t, err)

		assert.ErrorIs(t, lock.Release(ctx), ErrLockNotOwned)
	})
}

func TestLockManager_TryWithLock(t *testing.T) {
	ctx := context.Background()

	t.Run("取得できたら実行して解放する", func(t *testing.T) {
		m, mock := newMockLockManager(t)
		mock.ExpectSetNX("lock:sweeper", "token-1", time.Second).SetVal(true)
		mock.ExpectEval(releaseScript, []string{"lock:sweeper"}, "token-1").SetVal(int64(1))

		called := false
		ran, err := m.TryWithLock(ctx, "sweeper", time.Second, func(context.Context) error {
			called = true
			return nil
		})

		require.NoError(t, err)
		assert.True(t, ran)
		assert.True(t, called)
	})

	t.Run("他のインスタンスが保持中なら実行しない", func(t *testing.T) {
		m, mock := newMockLockManager(t)
		mock.ExpectSetNX("lock:sweeper", "token-1", time.Second).SetVal(false)

		ran, err := m.TryWithLock(ctx, "sweeper", time.Second, func(context.Context) error {
			t.Fatal("実行されてはいけない")
			return nil
		})

		require.NoError(t, err)
		assert.False(t, ran)
	})

	t.Run("fnのエラーを返しロックは解放する", func(t *testing.T) {
		m, mock := newMockLockManager(t)
		mock.ExpectSetNX("lock:sweeper", "token-1", time.Second).SetVal(true)
		mock.ExpectEval(releaseScript, []string{"lock:sweeper"}, "token-1").SetVal(int64(1))

		ran, err := m.TryWithLock(ctx, "sweeper", time.Second, func(context.Context) error {
			return assert.AnError
		})

		assert.True(t, ran)
		assert.ErrorIs(t, err, assert.AnError)
	})
}
