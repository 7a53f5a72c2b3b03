package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/clock"
)

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	newLimiter := func(t *testing.T) (*RateLimiter, redismock.ClientMock) {
		client, mock := redismock.NewClientMock()
		l := NewRateLimiter(client, 30, 10)
		l.clock = clock.NewFake(now)
		t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })
		return l, mock
	}
	args := []interface{}{now.UnixMilli(), 10, int64(2000), int64(120)}

	t.Run("トークンが残っていれば許可する", func(t *testing.T) {
		l, mock := newLimiter(t)
		mock.ExpectEvalSha(tokenBucketScript.Hash(), []string{"ratelimit:user-1"}, args...).
			SetVal([]interface{}{int64(1), int64(9), int64(0)})

		ok, retry, err := l.Allow(ctx, "user-1")

		require.NoError(t, err)
		assert.True(t, ok)
		assert.Zero(t, retry)
	})

	t.Run("使い切ったら待ち時間を返す", func(t *testing.T) {
		l, mock := newLimiter(t)
		mock.ExpectEvalSha(tokenBucketScript.Hash(), []string{"ratelimit:user-1"}, args...).
			SetVal([]interface{}{int64(0), int64(0), int64(1500)})

		ok, retry, err := l.Allow(ctx, "user-1")

		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 1500*time.Millisecond, retry)
	})

	t.Run("Redisエラーは呼び出し側に返す", func(t *testing.T) {
		l, mock := newLimiter(t)
		mock.ExpectEvalSha(tokenBucketScript.Hash(), []string{"ratelimit:user-1"}, args...).
			SetErr(errors.New("connection refused"))

		_, _, err := l.Allow(ctx, "user-1")

		assert.Error(t, err)
	})
}
