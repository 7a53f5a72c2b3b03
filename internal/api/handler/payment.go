package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/application"
)

type PaymentHandler struct {
	service PaymentServiceInterface
}

func NewPaymentHandler(s PaymentServiceInterface) *PaymentHandler {
	return &PaymentHandler{service: s}
}

type PaymentCallbackRequest struct {
	Type       string    `json:"type" validate:"required,oneof=succeeded failed" example:"succeeded"`
	PaymentID  string    `json:"payment_id" example:"pay-123"`
	BookingID  string    `json:"booking_id" validate:"required"`
	Amount     int       `json:"amount" validate:"gte=0" example:"3600"`
	OccurredAt time.Time `json:"occurred_at"`
}

type PaymentCallbackResponse struct {
	Outcome   string `json:"outcome" example:"confirmed"`
	Duplicate bool   `json:"duplicate"`
}

// Callback godoc
// @Summary 決済結果の通知
// @Description 決済成功なら予約を確定し、失敗ならキャンセルします。重複通知は200で応答します
// @Tags payments
// @Accept json
// @Produce json
// @Param request body PaymentCallbackRequest true "決済結果"
// @Success 200 {object} PaymentCallbackResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Router /payments/callback [post]
func (h *PaymentHandler) Callback(c echo.Context) error {
	var req PaymentCallbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	outcome, err := h.service.HandlePaymentEvent(c.Request().Context(), application.PaymentEvent{
		Type:       application.PaymentEventType(req.Type),
		PaymentID:  req.PaymentID,
		BookingID:  req.BookingID,
		Amount:     req.Amount,
		OccurredAt: req.OccurredAt,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, PaymentCallbackResponse{
		Outcome:   string(outcome),
		Duplicate: outcome == application.OutcomeDuplicate,
	})
}
