package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/roamly/experience-booking/internal/repository"
	"github.com/roamly/experience-booking/internal/service"
)

// RefundHandler issues refunds against settled payments.  ORGANIZER
// role required, and only the organizer of the paid experience may
// refund its payments.
type RefundHandler struct {
	Refunds  *service.RefundService
	Payments *repository.PaymentRepo
}

// Create handles POST /v1/payments/:id/refund.  Amount is in minor
// currency units, matching the payment record.
func (h *RefundHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	paymentID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment id"})
	}
	var req struct {
		Amount int64  `json:"amount"`
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx := c.Request().Context()
	organizer, err := h.Payments.OrganizerOf(ctx, paymentID)
	if err != nil {
		return httpError(c, err)
	}
	if organizer != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	ref, err := h.Refunds.Issue(ctx, paymentID, req.Amount, req.Reason)
	if err != nil {
		return httpError(c, err)
	}
	resp := echo.Map{
		"refund_id":  ref.ID,
		"payment_id": ref.PaymentID,
		"amount":     ref.Amount,
		"status":     ref.Status,
	}
	if ref.ProviderRefundID != nil {
		resp["provider_refund_id"] = *ref.ProviderRefundID
	}
	return c.JSON(http.StatusCreated, resp)
}
