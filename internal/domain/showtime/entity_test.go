package showtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShowtime_HasStarted(t *testing.T) {
	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	s := &Showtime{StartTime: start}

	tests := []struct {
		name     string
		now      time.Time
		expected bool
	}{
		{"開始前", start.Add(-time.Minute), false},
		{"開始時刻ちょうど", start, true},
		{"開始後", start.Add(time.Minute), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.HasStarted(tt.now))
		})
	}
}

func TestShowtime_Validate(t *testing.T) {
	tests := []struct {
		name        string
		showtime    *Showtime
		expectedErr error
	}{
		{"有効な上映回", &Showtime{ScreenID: "screen-1", BasePrice: 1800}, nil},
		{"スクリーンIDが空", &Showtime{BasePrice: 1800}, ErrScreenIDRequired},
		{"価格が負", &Showtime{ScreenID: "screen-1", BasePrice: -1}, ErrInvalidPrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.showtime.Validate()
			if tt.expectedErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}
