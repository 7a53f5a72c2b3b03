package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/application"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/config"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/logger"
)

// PaymentHandler は決済通知を予約に反映する
type PaymentHandler interface {
	HandlePaymentEvent(ctx context.Context, ev application.PaymentEvent) (application.PaymentOutcome, error)
}

// PaymentConsumer は決済成功・失敗トピックを購読する
type PaymentConsumer struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler *paymentClaimHandler
}

func NewPaymentConsumer(cfg *config.KafkaConfig, h PaymentHandler) (*PaymentConsumer, error) {
	sc := sarama.NewConfig()
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("Kafkaコンシューマーグループ作成に失敗: %w", err)
	}
	return &PaymentConsumer{
		group:   group,
		topics:  []string{cfg.PaymentSuccessTopic, cfg.PaymentFailedTopic},
		handler: newPaymentClaimHandler(cfg, h),
	}, nil
}

// Run は ctx が終了するまで購読を続ける。リバランス後は再参加する
func (c *PaymentConsumer) Run(ctx context.Context) error {
	logger.Info("決済イベントの購読開始", zap.Strings("topics", c.topics))
	for {
		if err := c.group.Consume(ctx, c.topics, c.handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			logger.Error("決済イベントの購読でエラー", zap.Error(err))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *PaymentConsumer) Close() error {
	return c.group.Close()
}

type paymentClaimHandler struct {
	handler    PaymentHandler
	topicTypes map[string]application.PaymentEventType
	maxRetries int
	backoff    time.Duration
}

func newPaymentClaimHandler(cfg *config.KafkaConfig, h PaymentHandler) *paymentClaimHandler {
	return &paymentClaimHandler{
		handler: h,
		topicTypes: map[string]application.PaymentEventType{
			cfg.PaymentSuccessTopic: application.PaymentSucceeded,
			cfg.PaymentFailedTopic:  application.PaymentFailed,
		},
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
	}
}

func (h *paymentClaimHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *paymentClaimHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim はメッセージを処理できた場合だけオフセットを進める
// 再試行しても失敗する場合はセッションを終了し、未コミットのメッセージは再配信される
func (h *paymentClaimHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.process(ctx, msg); err != nil {
				return err
			}
			session.MarkMessage(msg, "")
		}
	}
}

func (h *paymentClaimHandler) process(ctx context.Context, msg *sarama.ConsumerMessage) error {
	log := logger.Get().With(
		zap.String("topic", msg.Topic),
		zap.Int32("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)

	var ev application.PaymentEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		// 解釈できないメッセージは再試行しても変わらない
		log.Error("決済イベントのデコードに失敗、スキップ", zap.Error(err))
		return nil
	}
	if ev.Type == "" {
		ev.Type = h.topicTypes[msg.Topic]
	}

	var err error
	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.backoff * time.Duration(1<<(attempt-1))):
			}
		}
		_, err = h.handler.HandlePaymentEvent(logger.NewContext(ctx, log), ev)
		if err == nil {
			return nil
		}
		if errors.Is(err, booking.ErrInvalidRequest) {
			log.Error("不正な決済イベント、スキップ", zap.Error(err))
			return nil
		}
		log.Warn("決済イベント処理を再試行", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return fmt.Errorf("決済イベント処理に失敗 (booking_id=%s): %w", ev.BookingID, err)
}
