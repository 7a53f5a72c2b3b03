package kafka

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/application"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/config"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/booking"
)

type MockPaymentHandler struct {
	mock.Mock
}

func (m *MockPaymentHandler) HandlePaymentEvent(ctx context.Context, ev application.PaymentEvent) (application.PaymentOutcome, error) {
	args := m.Called(ctx, ev)
	return args.Get(0).(application.PaymentOutcome), args.Error(1)
}

type fakeSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32               { return nil }
func (s *fakeSession) MemberID() string                         { return "member-1" }
func (s *fakeSession) GenerationID() int32                      { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) Commit()                                  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context                 { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	topic string
	ch    chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return c.topic }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return int64(len(c.ch)) }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

func newClaim(topic string, values ...string) *fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(values))
	for i, v := range values {
		ch <- &sarama.ConsumerMessage{Topic: topic, Offset: int64(i), Value: []byte(v)}
	}
	close(ch)
	return &fakeClaim{topic: topic, ch: ch}
}

func testKafkaConfig() *config.KafkaConfig {
	return &config.KafkaConfig{
		PaymentSuccessTopic: "payment-success",
		PaymentFailedTopic:  "payment-failed",
		MaxRetries:          2,
		RetryBackoff:        time.Millisecond,
	}
}

func TestPaymentClaimHandler_ConsumeClaim(t *testing.T) {
	t.Run("トピックから種別を補い処理後にオフセットを進める", func(t *testing.T) {
		h := new(MockPaymentHandler)
		h.On("HandlePaymentEvent", mock.Anything, application.PaymentEvent{
			Type: application.PaymentSucceeded, PaymentID: "pay-1", BookingID: "bk-1", Amount: 3600,
		}).Return(application.OutcomeConfirmed, nil)
		session := &fakeSession{ctx: context.Background()}

		err := newPaymentClaimHandler(testKafkaConfig(), h).ConsumeClaim(session,
			newClaim("payment-success", `{"payment_id":"pay-1","booking_id":"bk-1","amount":3600}`))

		require.NoError(t, err)
		assert.Equal(t, []int64{0}, session.marked)
		h.AssertExpectations(t)
	})

	t.Run("決済失敗トピックはfailedとして渡す", func(t *testing.T) {
		h := new(MockPaymentHandler)
		h.On("HandlePaymentEvent", mock.Anything, mock.MatchedBy(func(ev application.PaymentEvent) bool {
			return ev.Type == application.PaymentFailed && ev.BookingID == "bk-2"
		})).Return(application.OutcomeCancelled, nil)
		session := &fakeSession{ctx: context.Background()}

		err := newPaymentClaimHandler(testKafkaConfig(), h).ConsumeClaim(session,
			newClaim("payment-failed", `{"booking_id":"bk-2"}`))

		require.NoError(t, err)
		assert.Equal(t, []int64{0}, session.marked)
	})

	t.Run("デコードできないメッセージはスキップして進める", func(t *testing.T) {
		h := new(MockPaymentHandler)
		h.On("HandlePaymentEvent", mock.Anything, mock.Anything).Return(application.OutcomeConfirmed, nil)
		session := &fakeSession{ctx: context.Background()}

		err := newPaymentClaimHandler(testKafkaConfig(), h).ConsumeClaim(session,
			newClaim("payment-success", `not-json`, `{"booking_id":"bk-1"}`))

		require.NoError(t, err)
		assert.Equal(t, []int64{0, 1}, session.marked)
		h.AssertNumberOfCalls(t, "HandlePaymentEvent", 1)
	})

	t.Run("不正なイベントは再試行しない", func(t *testing.T) {
		h := new(MockPaymentHandler)
		h.On("HandlePaymentEvent", mock.Anything, mock.Anything).Return(application.PaymentOutcome(""), application.ErrUnknownPaymentEvent)
		session := &fakeSession{ctx: context.Background()}

		err := newPaymentClaimHandler(testKafkaConfig(), h).ConsumeClaim(session,
			newClaim("payment-success", `{"type":"refunded","booking_id":"bk-1"}`))

		require.NoError(t, err)
		assert.Equal(t, []int64{0}, session.marked)
		h.AssertNumberOfCalls(t, "HandlePaymentEvent", 1)
	})

	t.Run("一時的なエラーは再試行して成功すれば進める", func(t *testing.T) {
		h := new(MockPaymentHandler)
		h.On("HandlePaymentEvent", mock.Anything, mock.Anything).Return(application.PaymentOutcome(""), assert.AnError).Once()
		h.On("HandlePaymentEvent", mock.Anything, mock.Anything).Return(application.OutcomeConfirmed, nil).Once()
		session := &fakeSession{ctx: context.Background()}

		err := newPaymentClaimHandler(testKafkaConfig(), h).ConsumeClaim(session,
			newClaim("payment-success", `{"booking_id":"bk-1"}`))

		require.NoError(t, err)
		assert.Equal(t, []int64{0}, session.marked)
		h.AssertNumberOfCalls(t, "HandlePaymentEvent", 2)
	})

	t.Run("再試行しても失敗すればオフセットを進めずに終了する", func(t *testing.T) {
		h := new(MockPaymentHandler)
		h.On("HandlePaymentEvent", mock.Anything, mock.Anything).Return(application.PaymentOutcome(""), assert.AnError)
		session := &fakeSession{ctx: context.Background()}

		err := newPaymentClaimHandler(testKafkaConfig(), h).ConsumeClaim(session,
			newClaim("payment-success", `{"booking_id":"bk-1"}`))

		assert.ErrorIs(t, err, assert.AnError)
		assert.Empty(t, session.marked)
		h.AssertNumberOfCalls(t, "HandlePaymentEvent", 3)
	})
}

// 不正な要求の判定はドメインのエラーに依存する
func TestUnknownPaymentEventIsInvalidRequest(t *testing.T) {
	assert.ErrorIs(t, application.ErrUnknownPaymentEvent, booking.ErrInvalidRequest)
}
