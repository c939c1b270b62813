package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/roamly/experience-booking/internal/model"
	"github.com/roamly/experience-booking/internal/service"
)

// CheckoutHandler starts the payment flow for a booking.
type CheckoutHandler struct {
	Checkout *service.CheckoutService
	Bookings service.BookingContextReader
}

// Create handles POST /v1/bookings/:id/checkout.  Only the booking's
// explorer may pay for it; the provider field is optional and falls
// back to the deployment's preference order.
func (h *CheckoutHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req struct {
		Provider   string `json:"provider"`
		SuccessURL string `json:"success_url"`
		CancelURL  string `json:"cancel_url"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.SuccessURL == "" || req.CancelURL == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "success_url and cancel_url are required"})
	}
	requested := model.PaymentProvider(strings.ToUpper(strings.TrimSpace(req.Provider)))
	if requested != "" && !model.KnownProvider(requested) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown payment provider"})
	}

	ctx := c.Request().Context()
	bc, err := h.Bookings.Context(ctx, bookingID)
	if err != nil {
		return httpError(c, err)
	}
	if bc.ExplorerID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	res, err := h.Checkout.CreateCheckout(ctx, bookingID, requested, req.SuccessURL, req.CancelURL)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"payment_id":   res.PaymentID,
		"provider":     res.Provider,
		"redirect_url": res.RedirectURL,
	})
}
