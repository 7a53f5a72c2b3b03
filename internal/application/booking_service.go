package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/hold"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/showtime"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/metrics"
)

// DefaultHoldDuration は決済完了までの座席保持時間
const DefaultHoldDuration = 10 * time.Minute

// DefaultSweepBatchSize は1回のスイープで処理する最大件数
const DefaultSweepBatchSize = 100

// BookingService は予約の作成から確定・期限切れ・キャンセルまでの状態遷移を担う
// 座席の保持は hold.Ledger に委譲し、保持レコードを直接書き換えない
type BookingService struct {
	txManager      transaction.Manager
	bookingRepo    booking.Repository
	showtimeRepo   showtime.Repository
	seatDirectory  seat.Directory
	ledger         hold.Ledger
	pricing        booking.PricingPolicy
	clock          clock.Clock
	holdDuration   time.Duration
	sweepBatchSize int
	refunder       booking.Refunder
	publisher      booking.EventPublisher
	metrics        *metrics.Metrics
	newID          func() string
}

// BookingOption は BookingService の任意設定
type BookingOption func(*BookingService)

func WithHoldDuration(d time.Duration) BookingOption {
	return func(s *BookingService) { s.holdDuration = d }
}

func WithSweepBatchSize(n int) BookingOption {
	return func(s *BookingService) { s.sweepBatchSize = n }
}

func WithClock(c clock.Clock) BookingOption {
	return func(s *BookingService) { s.clock = c }
}

func WithPricing(p booking.PricingPolicy) BookingOption {
	return func(s *BookingService) { s.pricing = p }
}

func WithRefunder(r booking.Refunder) BookingOption {
	return func(s *BookingService) { s.refunder = r }
}

func WithPublisher(p booking.EventPublisher) BookingOption {
	return func(s *BookingService) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) BookingOption {
	return func(s *BookingService) { s.metrics = m }
}

// WithIDGenerator は予約・チケットIDの生成関数を差し替える
func WithIDGenerator(f func() string) BookingOption {
	return func(s *BookingService) { s.newID = f }
}

func NewBookingService(
	txm transaction.Manager,
	br booking.Repository,
	sr showtime.Repository,
	dir seat.Directory,
	ledger hold.Ledger,
	opts ...BookingOption,
) *BookingService {
	s := &BookingService{
		txManager:      txm,
		bookingRepo:    br,
		showtimeRepo:   sr,
		seatDirectory:  dir,
		ledger:         ledger,
		pricing:        booking.DefaultPricing(),
		clock:          clock.System{},
		holdDuration:   DefaultHoldDuration,
		sweepBatchSize: DefaultSweepBatchSize,
		refunder:       nopRefunder{},
		publisher:      nopPublisher{},
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateBookingInput struct {
	UserID         string
	ShowtimeID     string
	SeatIDs        []string
	IdempotencyKey string
}

// CreateBooking は座席を保持して pending の予約を作成する
// 1席でも保持済みなら *hold.SeatsUnavailableError を返し、予約は残らない
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*booking.Booking, error) {
	log := logger.FromContext(ctx)

	if input.UserID == "" {
		return nil, booking.ErrUserIDRequired
	}
	if input.ShowtimeID == "" {
		return nil, booking.ErrShowtimeIDRequired
	}
	if err := booking.ValidateSeatSelection(input.SeatIDs); err != nil {
		s.metrics.IncReservation("invalid")
		return nil, err
	}

	// 冪等性チェック
	if input.IdempotencyKey != "" {
		existing, err := s.findByIdempotencyKey(ctx, input.UserID, input.IdempotencyKey)
		if err != nil || existing != nil {
			return existing, err
		}
	}

	st, err := s.showtimeRepo.GetByID(ctx, input.ShowtimeID)
	if err != nil {
		return nil, fmt.Errorf("上映回取得に失敗: %w", err)
	}
	now := s.clock.Now()
	if st.HasStarted(now) {
		s.metrics.IncReservation("invalid")
		return nil, booking.ErrShowtimeStarted
	}

	selected, err := s.selectSeats(ctx, st, input.SeatIDs)
	if err != nil {
		s.metrics.IncReservation("invalid")
		return nil, err
	}
	items := booking.PriceItems(s.pricing, st, selected)

	bookingID := s.newID()
	holds, err := s.ledger.TryReserve(ctx, st.ID, input.SeatIDs, bookingID, s.holdDuration)
	if err != nil {
		if errors.Is(err, hold.ErrSeatsUnavailable) {
			s.metrics.IncReservation("conflict")
			return nil, err
		}
		s.metrics.IncReservation("error")
		return nil, fmt.Errorf("座席保持に失敗: %w", err)
	}

	b := booking.NewBooking(bookingID, input.UserID, st.ID, input.IdempotencyKey, items, now, s.holdDuration)
	if len(holds) > 0 && holds[0].ExpiresAt != nil {
		b.ExpiresAt = *holds[0].ExpiresAt
	}

	err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		return s.bookingRepo.Create(ctx, tx, b)
	})
	if err != nil {
		// 予約が保存できなければ保持を戻す。失敗しても期限で解放される
		if _, relErr := s.ledger.Release(context.WithoutCancel(ctx), bookingID); relErr != nil {
			log.Warn("予約保存失敗後の保持解放に失敗", zap.String("booking_id", bookingID), zap.Error(relErr))
		}
		if errors.Is(err, booking.ErrIdempotencyKeyConflict) {
			existing, findErr := s.findByIdempotencyKey(ctx, input.UserID, input.IdempotencyKey)
			if findErr != nil || existing != nil {
				return existing, findErr
			}
		}
		s.metrics.IncReservation("error")
		return nil, fmt.Errorf("予約保存に失敗: %w", err)
	}

	s.metrics.IncReservation("success")
	log.Info("予約を作成",
		zap.String("booking_id", b.ID),
		zap.String("showtime_id", b.ShowtimeID),
		zap.Strings("seat_ids", b.SeatIDs()),
		zap.Time("expires_at", b.ExpiresAt),
	)
	return b, nil
}

// findByIdempotencyKey は同じユーザーの既存予約を返す。存在しなければ nil, nil
func (s *BookingService) findByIdempotencyKey(ctx context.Context, userID, key string) (*booking.Booking, error) {
	existing, err := s.bookingRepo.GetByIdempotencyKey(ctx, key)
	if errors.Is(err, booking.ErrBookingNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("冪等性チェックに失敗: %w", err)
	}
	if existing.UserID != userID {
		return nil, booking.ErrIdempotencyKeyConflict
	}
	return existing, nil
}

// selectSeats は要求された座席が上映スクリーンに存在することを確認し、要求順で返す
func (s *BookingService) selectSeats(ctx context.Context, st *showtime.Showtime, seatIDs []string) ([]*seat.Seat, error) {
	layout, err := s.seatDirectory.GetByScreenID(ctx, st.ScreenID)
	if err != nil {
		return nil, fmt.Errorf("座席取得に失敗: %w", err)
	}
	idx := seat.IndexByID(layout)
	selected := make([]*seat.Seat, len(seatIDs))
	for i, id := range seatIDs {
		se, ok := idx[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", booking.ErrSeatNotInScreen, id)
		}
		selected[i] = se
	}
	return selected, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	return s.bookingRepo.GetByID(ctx, id)
}

// ConfirmPayment は決済完了を受けて保持を確定し、座席ごとにチケットを発行する
// 終了済みの予約には ErrAlreadyTerminal、保持期限切れには ErrHoldExpired を返す
func (s *BookingService) ConfirmPayment(ctx context.Context, bookingID string) (*booking.Booking, error) {
	log := logger.FromContext(ctx).With(zap.String("booking_id", bookingID))

	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status == booking.StatusExpired {
		return b, booking.ErrHoldExpired
	}
	if b.IsTerminal() {
		return b, fmt.Errorf("%w: %s", booking.ErrAlreadyTerminal, b.Status)
	}

	err = s.ledger.Confirm(ctx, bookingID)
	switch {
	case err == nil:
	case errors.Is(err, hold.ErrHoldAlreadyConfirmed):
		// 前回の確定で台帳だけ更新された場合は予約側の遷移を完了させる
		log.Info("保持は確定済み、予約の確定を続行")
	case errors.Is(err, hold.ErrHoldExpired), errors.Is(err, hold.ErrHoldNotFound):
		won, expErr := s.expire(ctx, b)
		if expErr != nil {
			return nil, expErr
		}
		if !won {
			return s.lostRace(ctx, bookingID)
		}
		return b, booking.ErrHoldExpired
	default:
		return nil, fmt.Errorf("保持確定に失敗: %w", err)
	}

	now := s.clock.Now()
	if err := b.Confirm(now, s.newID); err != nil {
		return b, err
	}
	err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		if err := s.bookingRepo.Transition(ctx, tx, b, booking.StatusPending); err != nil {
			return err
		}
		return s.bookingRepo.CreateTickets(ctx, tx, b.Tickets)
	})
	if err != nil {
		if errors.Is(err, booking.ErrStatusConflict) || errors.Is(err, booking.ErrAlreadyTerminal) {
			return s.lostRace(ctx, bookingID)
		}
		return nil, fmt.Errorf("予約確定に失敗: %w", err)
	}

	s.metrics.IncTransition(string(booking.StatusConfirmed))
	s.publish(ctx, booking.EventConfirmed, b, now)
	log.Info("予約を確定", zap.Int("tickets", len(b.Tickets)), zap.Int("total_amount", b.TotalAmount))
	return b, nil
}

// lostRace は並行する遷移に負けた場合の結果を返す
func (s *BookingService) lostRace(ctx context.Context, bookingID string) (*booking.Booking, error) {
	current, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if current.Status == booking.StatusExpired {
		return current, booking.ErrHoldExpired
	}
	return current, fmt.Errorf("%w: %s", booking.ErrAlreadyTerminal, current.Status)
}

// expire は pending の予約を期限切れにして保持を解放する
// 他の遷移が先に行われていた場合は false を返す
func (s *BookingService) expire(ctx context.Context, b *booking.Booking) (bool, error) {
	now := s.clock.Now()
	if err := b.Expire(now); err != nil {
		return false, nil
	}
	err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		return s.bookingRepo.Transition(ctx, tx, b, booking.StatusPending)
	})
	if errors.Is(err, booking.ErrStatusConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("予約の期限切れ更新に失敗: %w", err)
	}

	if _, err := s.ledger.Release(ctx, b.ID); err != nil {
		return true, fmt.Errorf("保持解放に失敗: %w", err)
	}
	s.metrics.IncTransition(string(booking.StatusExpired))
	s.publish(ctx, booking.EventExpired, b, now)
	return true, nil
}

type CancelBookingInput struct {
	BookingID string
	ActorID   string
	IsAdmin   bool
	Reason    string
	// PendingOnly は確定済みの予約をキャンセル対象から外す（決済失敗通知用）
	PendingOnly bool
}

// CancelBooking は pending または confirmed の予約をキャンセルし保持を解放する
// 確定済みの場合はチケットを無効化し返金を依頼する
func (s *BookingService) CancelBooking(ctx context.Context, input CancelBookingInput) (*booking.Booking, error) {
	log := logger.FromContext(ctx).With(zap.String("booking_id", input.BookingID))

	b, err := s.bookingRepo.GetByID(ctx, input.BookingID)
	if err != nil {
		return nil, err
	}
	if !input.IsAdmin && b.UserID != input.ActorID {
		return nil, booking.ErrForbidden
	}
	if input.PendingOnly && b.Status == booking.StatusConfirmed {
		return b, fmt.Errorf("%w: %s", booking.ErrAlreadyTerminal, b.Status)
	}
	if b.Status == booking.StatusCancelled || b.Status == booking.StatusExpired {
		// 前回のキャンセルで解放に失敗していても、ここで必ず解放される
		if _, err := s.ledger.Release(ctx, b.ID); err != nil {
			return nil, fmt.Errorf("保持解放に失敗: %w", err)
		}
		return b, fmt.Errorf("%w: %s", booking.ErrAlreadyTerminal, b.Status)
	}

	from := b.Status
	now := s.clock.Now()
	if err := b.Cancel(now, input.Reason); err != nil {
		return b, err
	}
	err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		if err := s.bookingRepo.Transition(ctx, tx, b, from); err != nil {
			return err
		}
		if from == booking.StatusConfirmed {
			return s.bookingRepo.VoidTickets(ctx, tx, b.ID, now)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, booking.ErrStatusConflict) {
			current, getErr := s.bookingRepo.GetByID(ctx, b.ID)
			if getErr != nil {
				return nil, getErr
			}
			return current, fmt.Errorf("%w: %s", booking.ErrAlreadyTerminal, current.Status)
		}
		return nil, fmt.Errorf("予約キャンセルに失敗: %w", err)
	}

	if _, err := s.ledger.Release(ctx, b.ID); err != nil {
		return b, fmt.Errorf("保持解放に失敗: %w", err)
	}

	if from == booking.StatusConfirmed {
		s.requestRefund(ctx, booking.RefundRequest{
			BookingID:   b.ID,
			UserID:      b.UserID,
			Amount:      b.TotalAmount,
			Reason:      "booking_cancelled",
			RequestedAt: now,
		})
	}

	s.metrics.IncTransition(string(booking.StatusCancelled))
	s.publish(ctx, booking.EventCancelled, b, now)
	log.Info("予約をキャンセル", zap.String("from", string(from)), zap.String("reason", input.Reason))
	return b, nil
}

// SweepExpired は期限切れの pending 予約を expired にして保持を解放する
// 確定と競合して負けた予約は数えない
func (s *BookingService) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.bookingRepo.ListExpiredPending(ctx, s.clock.Now(), s.sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("期限切れ予約取得に失敗: %w", err)
	}

	var errs []error
	count := 0
	for _, b := range expired {
		won, err := s.expire(ctx, b)
		if err != nil {
			errs = append(errs, fmt.Errorf("予約 %s: %w", b.ID, err))
		}
		if won {
			count++
		}
	}

	if purged, err := s.ledger.PurgeExpired(ctx); err != nil {
		errs = append(errs, err)
	} else if purged > 0 {
		logger.FromContext(ctx).Debug("期限切れ保持を削除", zap.Int("count", purged))
	}

	s.metrics.AddSwept(count)
	return count, errors.Join(errs...)
}

func (s *BookingService) requestRefund(ctx context.Context, r booking.RefundRequest) {
	if err := s.refunder.RequestRefund(ctx, r); err != nil {
		logger.FromContext(ctx).Error("返金依頼に失敗",
			zap.String("booking_id", r.BookingID),
			zap.Int("amount", r.Amount),
			zap.Error(err),
		)
	}
}

func (s *BookingService) publish(ctx context.Context, t booking.EventType, b *booking.Booking, at time.Time) {
	if err := s.publisher.Publish(ctx, booking.NewEvent(t, b, at)); err != nil {
		logger.FromContext(ctx).Warn("予約イベント通知に失敗",
			zap.String("booking_id", b.ID),
			zap.String("type", string(t)),
			zap.Error(err),
		)
	}
}

type nopRefunder struct{}

func (nopRefunder) RequestRefund(context.Context, booking.RefundRequest) error { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, booking.Event) error { return nil }
