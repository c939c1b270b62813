package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/roamly/experience-booking/internal/model"
	"github.com/roamly/experience-booking/internal/service"
)

// BookingHandler exposes booking creation, guest revision and
// cancellation.  All routes require an authenticated explorer.
type BookingHandler struct {
	Capacity *service.CapacityService
	Redis    *redis.Client // nil disables availability cache invalidation
}

// Create handles POST /v1/bookings.  It admits the requested guests
// against the session capacity and reserves the seats as a PENDING
// booking with a payment hold deadline.
func (h *BookingHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req struct {
		SessionID uint64 `json:"session_id"`
		Guests    uint32 `json:"guests"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.SessionID == 0 || req.Guests == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_id and guests are required"})
	}

	b, err := h.Capacity.Reserve(c.Request().Context(), req.SessionID, uid, req.Guests)
	if err != nil {
		return httpError(c, err)
	}
	invalidateAvailability(c, h.Redis, b.SessionID)
	return c.JSON(http.StatusCreated, bookingJSON(b))
}

// Revise handles PATCH /v1/bookings/:id.  Guest changes re-run the
// capacity admission and reprice the booking; bookings carrying a
// coupon must drop it first.
func (h *BookingHandler) Revise(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req struct {
		Guests uint32 `json:"guests"`
	}
	if err := c.Bind(&req); err != nil || req.Guests == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "guests is required"})
	}

	b, err := h.Capacity.Revise(c.Request().Context(), bookingID, uid, req.Guests)
	if err != nil {
		return httpError(c, err)
	}
	invalidateAvailability(c, h.Redis, b.SessionID)
	return c.JSON(http.StatusOK, bookingJSON(b))
}

// Cancel handles DELETE /v1/bookings/:id, releasing the seats.
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	sessionID, err := h.Capacity.Cancel(c.Request().Context(), bookingID, uid)
	if err != nil {
		return httpError(c, err)
	}
	invalidateAvailability(c, h.Redis, sessionID)
	return c.NoContent(http.StatusNoContent)
}

// bookingJSON renders a booking for API responses.
func bookingJSON(b *model.Booking) echo.Map {
	m := echo.Map{
		"id":          b.ID,
		"session_id":  b.SessionID,
		"guests":      b.Guests,
		"total_price": b.TotalPrice,
		"status":      b.Status,
		"created_at":  b.CreatedAt,
	}
	if b.PaymentStatus != nil {
		m["payment_status"] = *b.PaymentStatus
	}
	if b.PaymentID != nil {
		m["payment_id"] = *b.PaymentID
	}
	if b.ExpiresAt != nil {
		m["expires_at"] = *b.ExpiresAt
	}
	return m
}
