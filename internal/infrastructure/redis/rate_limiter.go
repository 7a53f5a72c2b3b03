package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/clock"
)

// トークンバケット。残量と最終補充時刻をハッシュに保持する
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local interval_ms = tonumber(ARGV[3])
	local ttl_seconds = tonumber(ARGV[4])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])
	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 then
		local intervals = math.floor(math.max(0, now_ms - last_refill) / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + intervals)
			last_refill = last_refill + intervals * interval_ms
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)
	return { allowed, tokens, retry_after_ms }
`)

// RateLimiter は Redis 上のトークンバケットで複数インスタンス共通のレート制限を行う
type RateLimiter struct {
	client   *redis.Client
	prefix   string
	capacity int
	interval time.Duration
	ttl      time.Duration
	clock    clock.Clock
}

// NewRateLimiter は1分あたり perMinute 回、最大 burst 回まで連続で許可するリミッターを作る
func NewRateLimiter(client *redis.Client, perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		client:   client,
		prefix:   "ratelimit",
		capacity: burst,
		interval: time.Minute / time.Duration(perMinute),
		ttl:      2 * time.Minute,
		clock:    clock.System{},
	}
}

// Allow はキーのトークンを1つ消費する。残量がなければ次に補充されるまでの時間を返す
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	args := []interface{}{
		l.clock.Now().UnixMilli(),
		l.capacity,
		l.interval.Milliseconds(),
		int64(l.ttl / time.Second),
	}
	vals, err := tokenBucketScript.Run(ctx, l.client, []string{l.prefix + ":" + key}, args...).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("レート制限の評価に失敗: %w", err)
	}
	if len(vals) != 3 {
		return false, 0, fmt.Errorf("レート制限の結果が不正: %v", vals)
	}
	allowed := asInt64(vals[0]) == 1
	retry := time.Duration(asInt64(vals[2])) * time.Millisecond
	return allowed, retry, nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	}
	return 0
}
