package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/booking"
)

type published struct {
	key string
	msg amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	declareErr error
	publishErr error
	published  []published
	closed     bool
}

func (c *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	if c.declareErr != nil {
		return amqp.Queue{}, c.declareErr
	}
	if durable {
		c.declared = append(c.declared, name)
	}
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, published{key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestBookingEventPublisher(t *testing.T) {
	ctx := context.Background()
	ev := booking.Event{
		Type:        booking.EventConfirmed,
		BookingID:   "bk-1",
		UserID:      "user-1",
		ShowtimeID:  "st-1",
		SeatIDs:     []string{"A1", "A2"},
		Status:      booking.StatusConfirmed,
		TotalAmount: 3600,
		OccurredAt:  time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	t.Run("全種別のキューを永続で宣言する", func(t *testing.T) {
		ch := &fakeChannel{}
		_, err := newBookingEventPublisher(ch)

		require.NoError(t, err)
		assert.Equal(t, []string{"booking.confirmed", "booking.cancelled", "booking.expired"}, ch.declared)
	})

	t.Run("キュー宣言の失敗はエラー", func(t *testing.T) {
		_, err := newBookingEventPublisher(&fakeChannel{declareErr: errors.New("access refused")})
		assert.Error(t, err)
	})

	t.Run("種別と同名のキューに永続メッセージを送る", func(t *testing.T) {
		ch := &fakeChannel{}
		p, err := newBookingEventPublisher(ch)
		require.NoError(t, err)

		require.NoError(t, p.Publish(ctx, ev))

		require.Len(t, ch.published, 1)
		got := ch.published[0]
		assert.Equal(t, "booking.confirmed", got.key)
		assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
		assert.Equal(t, "application/json", got.msg.ContentType)
		assert.Equal(t, "bk-1:booking.confirmed", got.msg.MessageId)

		var decoded booking.Event
		require.NoError(t, json.Unmarshal(got.msg.Body, &decoded))
		assert.Equal(t, ev, decoded)
	})

	t.Run("送信失敗はエラー", func(t *testing.T) {
		ch := &fakeChannel{}
		p, err := newBookingEventPublisher(ch)
		require.NoError(t, err)
		ch.publishErr = errors.New("channel closed")

		assert.Error(t, p.Publish(ctx, ev))
	})

	t.Run("Closeでチャネルを閉じる", func(t *testing.T) {
		ch := &fakeChannel{}
		p, err := newBookingEventPublisher(ch)
		require.NoError(t, err)

		require.NoError(t, p.Close())
		assert.True(t, ch.closed)
	})
}
