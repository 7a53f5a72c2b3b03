package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/logger"
)

// Limiter はキーごとのレート制限
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RateLimit は呼び出し元ごとにリクエストを制限するミドルウェア
// primary（Redis）が失敗した場合は fallback（プロセス内）で判定する
func RateLimit(primary, fallback Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "ip:" + c.RealIP()
			if id, ok := IdentityFrom(c); ok {
				key = "user:" + id.UserID
			}

			ctx := c.Request().Context()
			allowed, retryAfter, err := allow(ctx, primary, key)
			if err != nil {
				logger.FromContext(ctx).Warn("レート制限の判定に失敗、フォールバックを使用",
					zap.String("key", key), zap.Error(err))
				allowed, retryAfter, err = allow(ctx, fallback, key)
				if err != nil {
					// 判定できない場合は通す
					return next(c)
				}
			}
			if !allowed {
				secs := int(math.Ceil(retryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return echo.NewHTTPError(http.StatusTooManyRequests, "リクエストが多すぎます")
			}
			return next(c)
		}
	}
}

func allow(ctx context.Context, l Limiter, key string) (bool, time.Duration, error) {
	if l == nil {
		return true, 0, nil
	}
	return l.Allow(ctx, key)
}

// MemoryLimiter はプロセス内のトークンバケット
type MemoryLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewMemoryLimiter は1分あたり perMinute 回、最大 burst 回まで連続で許可するリミッターを作る
func NewMemoryLimiter(perMinute, burst int) *MemoryLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &MemoryLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	r := lim.Reserve()
	if d := r.Delay(); d > 0 {
		r.Cancel()
		return false, d, nil
	}
	return true, 0, nil
}
