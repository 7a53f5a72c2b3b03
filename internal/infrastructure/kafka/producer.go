package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/config"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/logger"
)

// RefundPublisher は返金依頼を決済サービス向けのトピックに送る
type RefundPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewRefundPublisher(cfg *config.KafkaConfig) (*RefundPublisher, error) {
	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = cfg.MaxRetries
	sc.Producer.Retry.Backoff = cfg.RetryBackoff
	sc.Producer.Return.Successes = true
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("Kafkaプロデューサー作成に失敗: %w", err)
	}
	return newRefundPublisher(producer, cfg.RefundTopic), nil
}

func newRefundPublisher(producer sarama.SyncProducer, topic string) *RefundPublisher {
	return &RefundPublisher{producer: producer, topic: topic}
}

// RequestRefund は予約IDをキーにして送信する。同じ予約の依頼は同じパーティションに入る
func (p *RefundPublisher) RequestRefund(ctx context.Context, r booking.RefundRequest) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("返金依頼のエンコードに失敗: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(r.BookingID),
		Value: sarama.ByteEncoder(data),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("返金依頼の送信に失敗: %w", err)
	}
	logger.FromContext(ctx).Info("返金依頼を送信",
		zap.String("booking_id", r.BookingID),
		zap.String("topic", p.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (p *RefundPublisher) Close() error {
	return p.producer.Close()
}

var _ booking.Refunder = (*RefundPublisher)(nil)
