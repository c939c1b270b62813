package handler

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/roamly/experience-booking/internal/service"
)

// WebhookHandler receives provider settlement notifications.  The
// route is unauthenticated; authenticity comes from the signature
// header alone.
type WebhookHandler struct {
	Settlement *service.SettlementService
}

// Receive handles POST /v1/webhooks/payment.  Integrity failures
// (bad signature, unresolvable metadata) are logged and acknowledged
// so the sender never retry-storms an unprocessable delivery; only a
// storage failure is non-2xx, because there a retry actually helps.
func (h *WebhookHandler) Receive(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	sig := c.Request().Header.Get("X-Webhook-Signature")

	if err := h.Settlement.HandleNotification(c.Request().Context(), payload, sig); err != nil {
		if errors.Is(err, service.ErrBadSignature) {
			log.Printf("webhook: rejected delivery from %s: %v", c.RealIP(), err)
			return c.JSON(http.StatusOK, echo.Map{"received": true})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
