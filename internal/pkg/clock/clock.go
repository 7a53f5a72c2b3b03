package clock

import (
	"sync"
	"time"
)

// Clock は現在時刻を返す。期限判定をテストで制御するために注入する
type Clock interface {
	Now() time.Time
}

// System は実時間を返す Clock
type System struct{}

// Now は現在時刻を返す
func (System) Now() time.Time { return time.Now() }

// Fake はテスト用の手動で進める Clock
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake は指定時刻で停止した Fake を作成する
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance は時刻を d だけ進める
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Set は時刻を t に設定する
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}
