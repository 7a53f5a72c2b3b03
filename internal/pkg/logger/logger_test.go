package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// observe はグローバルロガーを観測用に差し替え、テスト後に戻す
func observe(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(level)
	orig := Get()
	Set(zap.New(core))
	t.Cleanup(func() { Set(orig) })
	return logs
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		env       string
		logLevel  string
		wantDebug bool
		wantInfo  bool
	}{
		{name: "開発環境はdebugから出力", env: "development", wantDebug: true, wantInfo: true},
		{name: "本番環境はinfoから出力", env: "production", wantInfo: true},
		{name: "LOG_LEVELで引き上げ", env: "production", logLevel: "warn"},
		{name: "LOG_LEVELで引き下げ", env: "production", logLevel: "debug", wantDebug: true, wantInfo: true},
		{name: "無効なLOG_LEVELは無視", env: "production", logLevel: "verbose", wantInfo: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.logLevel)

			l := NewLogger(tt.env)
			require.NotNil(t, l)

			assert.Equal(t, tt.wantDebug, l.Core().Enabled(zapcore.DebugLevel))
			assert.Equal(t, tt.wantInfo, l.Core().Enabled(zapcore.InfoLevel))
			assert.True(t, l.Core().Enabled(zapcore.ErrorLevel))
		})
	}
}

func TestGlobalHelpers(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	Debug("d")
	Info("i", zap.String("booking_id", "b-1"))
	Warn("w")
	Error("e", zap.Int("status", 500))
	With(zap.String("showtime_id", "st-1")).Info("scoped")

	entries := logs.All()
	require.Len(t, entries, 5)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "b-1", entries[1].ContextMap()["booking_id"])
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, int64(500), entries[3].ContextMap()["status"])
	assert.Equal(t, "st-1", entries[4].ContextMap()["showtime_id"])
	assert.NotPanics(t, func() { _ = Sync() })
}

func TestSetGet(t *testing.T) {
	orig := Get()
	t.Cleanup(func() { Set(orig) })

	nop := zap.NewNop()
	Set(nop)

	assert.Same(t, nop, Get())
}

func TestFromContext(t *testing.T) {
	t.Run("格納したロガーを返す", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		l := zap.New(core).With(zap.String("request_id", "req-1"))

		ctx := NewContext(context.Background(), l)
		FromContext(ctx).Info("hello")

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "req-1", logs.All()[0].ContextMap()["request_id"])
	})

	t.Run("未格納ならグローバルロガー", func(t *testing.T) {
		assert.Same(t, Get(), FromContext(context.Background()))
	})
}
