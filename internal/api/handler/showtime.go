package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/application"
)

type ShowtimeHandler struct {
	service AvailabilityServiceInterface
}

func NewShowtimeHandler(s AvailabilityServiceInterface) *ShowtimeHandler {
	return &ShowtimeHandler{service: s}
}

type SeatResponse struct {
	ID        string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Row       string `json:"row" example:"A"`
	Number    int    `json:"number" example:"12"`
	Label     string `json:"label" example:"A-12"`
	Tier      string `json:"tier" example:"standard"`
	Price     int    `json:"price" example:"1800"`
	Available bool   `json:"available"`
}

type CheckAvailabilityRequest struct {
	SeatIDs []string `json:"seat_ids" validate:"required,min=1,dive,required"`
}

type AvailabilityResponse struct {
	AllAvailable       bool     `json:"all_available"`
	UnavailableSeatIDs []string `json:"unavailable_seat_ids"`
}

type AvailableCountResponse struct {
	ShowtimeID     string `json:"showtime_id"`
	AvailableCount int    `json:"available_count"`
}

func toSeatResponse(a *application.SeatAvailability) SeatResponse {
	return SeatResponse{
		ID: a.Seat.ID, Row: a.Seat.RowLabel, Number: a.Seat.Number,
		Label: a.Seat.Label(), Tier: string(a.Seat.Tier),
		Price: a.Price, Available: a.Available,
	}
}

// GetSeats godoc
// @Summary 上映回の座席一覧を取得
// @Description 座席ごとの空き状況と価格を返します（照会時点の参考値）
// @Tags showtimes
// @Produce json
// @Param id path string true "上映回ID"
// @Success 200 {array} SeatResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /showtimes/{id}/seats [get]
func (h *ShowtimeHandler) GetSeats(c echo.Context) error {
	seats, err := h.service.GetShowtimeSeats(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	resp := make([]SeatResponse, len(seats))
	for i, s := range seats {
		resp[i] = toSeatResponse(s)
	}
	return c.JSON(http.StatusOK, resp)
}

// CountAvailable godoc
// @Summary 空席数を取得
// @Tags showtimes
// @Produce json
// @Param id path string true "上映回ID"
// @Success 200 {object} AvailableCountResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /showtimes/{id}/seats/available/count [get]
func (h *ShowtimeHandler) CountAvailable(c echo.Context) error {
	id := c.Param("id")
	n, err := h.service.CountAvailable(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AvailableCountResponse{ShowtimeID: id, AvailableCount: n})
}

// CheckAvailability godoc
// @Summary 座席選択の事前チェック
// @Description 結果は参考値で、予約の成功を保証しません
// @Tags showtimes
// @Accept json
// @Produce json
// @Param id path string true "上映回ID"
// @Param request body CheckAvailabilityRequest true "座席ID"
// @Success 200 {object} AvailabilityResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /showtimes/{id}/seats/availability [post]
func (h *ShowtimeHandler) CheckAvailability(c echo.Context) error {
	var req CheckAvailabilityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	res, err := h.service.CheckAvailability(c.Request().Context(), c.Param("id"), req.SeatIDs)
	if err != nil {
		return err
	}
	unavailable := res.Unavailable
	if unavailable == nil {
		unavailable = []string{}
	}
	return c.JSON(http.StatusOK, AvailabilityResponse{AllAvailable: res.AllAvailable, UnavailableSeatIDs: unavailable})
}
