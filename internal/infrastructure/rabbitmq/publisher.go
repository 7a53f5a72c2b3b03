package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/booking"
)

// channel は *amqp.Channel のうち送信に使う部分
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// EventQueues は通知種別ごとのキュー名。キュー名はイベント種別と同じ
var EventQueues = []booking.EventType{
	booking.EventConfirmed,
	booking.EventCancelled,
	booking.EventExpired,
}

// BookingEventPublisher は予約の状態遷移を種別ごとの永続キューに送る
type BookingEventPublisher struct {
	conn *amqp.Connection
	mu   sync.Mutex
	ch   channel
}

// NewBookingEventPublisher は接続を確立し、送信先キューを宣言する
func NewBookingEventPublisher(url string) (*BookingEventPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("RabbitMQ接続に失敗: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("RabbitMQチャネル作成に失敗: %w", err)
	}
	p, err := newBookingEventPublisher(ch)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newBookingEventPublisher(ch channel) (*BookingEventPublisher, error) {
	for _, q := range EventQueues {
		if _, err := ch.QueueDeclare(string(q), true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("キュー %s の宣言に失敗: %w", q, err)
		}
	}
	return &BookingEventPublisher{ch: ch}, nil
}

// Publish はイベント種別と同名のキューへ永続メッセージとして送る
func (p *BookingEventPublisher) Publish(ctx context.Context, e booking.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("予約イベントのエンコードに失敗: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.BookingID + ":" + string(e.Type),
		Timestamp:    e.OccurredAt.UTC(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, "", string(e.Type), false, false, msg); err != nil {
		return fmt.Errorf("予約イベントの送信に失敗: %w", err)
	}
	return nil
}

func (p *BookingEventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

var _ booking.EventPublisher = (*BookingEventPublisher)(nil)
