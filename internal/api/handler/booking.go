package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/application"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/booking"
)

type BookingHandler struct {
	service BookingServiceInterface
}

func NewBookingHandler(s BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: s}
}

type CreateBookingRequest struct {
	ShowtimeID     string   `json:"showtime_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	SeatIDs        []string `json:"seat_ids" validate:"required,min=1,dive,required"`
	IdempotencyKey string   `json:"idempotency_key" example:"order-2026-001"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"max=200"`
}

type BookingItemResponse struct {
	SeatID string `json:"seat_id"`
	Price  int    `json:"price"`
}

type TicketResponse struct {
	ID       string     `json:"id"`
	SeatID   string     `json:"seat_id"`
	Price    int        `json:"price"`
	IssuedAt time.Time  `json:"issued_at"`
	VoidedAt *time.Time `json:"voided_at,omitempty"`
}

type BookingResponse struct {
	ID           string                `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	UserID       string                `json:"user_id" example:"user-123"`
	ShowtimeID   string                `json:"showtime_id"`
	Items        []BookingItemResponse `json:"items"`
	Status       string                `json:"status" example:"pending"`
	TotalAmount  int                   `json:"total_amount" example:"3600"`
	ExpiresAt    time.Time             `json:"expires_at"`
	ConfirmedAt  *time.Time            `json:"confirmed_at,omitempty"`
	CancelledAt  *time.Time            `json:"cancelled_at,omitempty"`
	CancelReason string                `json:"cancel_reason,omitempty"`
	Tickets      []TicketResponse      `json:"tickets,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	items := make([]BookingItemResponse, len(b.Items))
	for i, it := range b.Items {
		items[i] = BookingItemResponse{SeatID: it.SeatID, Price: it.Price}
	}
	var tickets []TicketResponse
	for _, t := range b.Tickets {
		tickets = append(tickets, TicketResponse{
			ID: t.ID, SeatID: t.SeatID, Price: t.Price, IssuedAt: t.IssuedAt, VoidedAt: t.VoidedAt,
		})
	}
	return BookingResponse{
		ID: b.ID, UserID: b.UserID, ShowtimeID: b.ShowtimeID,
		Items: items, Status: string(b.Status), TotalAmount: b.TotalAmount,
		ExpiresAt: b.ExpiresAt, ConfirmedAt: b.ConfirmedAt,
		CancelledAt: b.CancelledAt, CancelReason: b.CancelReason,
		Tickets: tickets, CreatedAt: b.CreatedAt,
	}
}

func identity(c echo.Context) (middleware.Identity, error) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return middleware.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	return id, nil
}

// Create godoc
// @Summary 予約を作成
// @Description 座席を保持して pending の予約を作成します（保持期限まで有効）
// @Tags bookings
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "冪等性キー"
// @Param request body CreateBookingRequest true "予約情報"
// @Success 201 {object} BookingResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "座席が既に保持済み"
// @Failure 429 {object} api.ErrorResponse
// @Router /bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	var req CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	key := req.IdempotencyKey
	if key == "" {
		key = c.Request().Header.Get(middleware.HeaderIdempotencyKey)
	}
	b, err := h.service.CreateBooking(c.Request().Context(), application.CreateBookingInput{
		UserID: id.UserID, ShowtimeID: req.ShowtimeID, SeatIDs: req.SeatIDs, IdempotencyKey: key,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toBookingResponse(b))
}

// GetByID godoc
// @Summary 予約を取得
// @Description 本人または管理者のみ取得できます
// @Tags bookings
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /bookings/{id} [get]
func (h *BookingHandler) GetByID(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	b, err := h.service.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if b.UserID != id.UserID && !id.IsAdmin() {
		return booking.ErrForbidden
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description 予約をキャンセルし座席を解放します。確定済みの場合は返金を依頼します
// @Tags bookings
// @Accept json
// @Produce json
// @Param id path string true "予約ID"
// @Param request body CancelBookingRequest false "キャンセル理由"
// @Success 200 {object} BookingResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "既に終了済み"
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	var req CancelBookingRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
		}
		if err := c.Validate(&req); err != nil {
			return err
		}
	}
	reason := req.Reason
	if reason == "" {
		reason = "user_requested"
	}
	b, err := h.service.CancelBooking(c.Request().Context(), application.CancelBookingInput{
		BookingID: c.Param("id"), ActorID: id.UserID, IsAdmin: id.IsAdmin(), Reason: reason,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}
