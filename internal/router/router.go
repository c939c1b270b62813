package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/roamly/experience-booking/internal/handler"
	"github.com/roamly/experience-booking/internal/middleware"
)

// Handlers bundles everything the route table needs.
type Handlers struct {
	Booking  *handler.BookingHandler
	Checkout *handler.CheckoutHandler
	Webhook  *handler.WebhookHandler
	Coupon   *handler.CouponHandler
	Refund   *handler.RefundHandler
	Session  *handler.SessionHandler
}

// RegisterRoutes registers routes that do not require authentication
// on the provided Echo instance: the health check, the public
// availability read and the webhook receiver (authenticated by its
// signature header, not by a JWT).
func RegisterRoutes(e *echo.Echo, h *Handlers) {
	// Load balancers and monitoring probe this endpoint.
	e.GET("/healthz", handler.Health)

	e.GET("/v1/sessions/:id/availability", h.Session.Availability)

	e.POST("/v1/webhooks/payment", h.Webhook.Receive)
}

// RegisterAPI registers the authenticated surface under /v1.  All
// routes pass JWT validation and the rate limiter; organizer-only
// routes additionally require the ORGANIZER role.
func RegisterAPI(e *echo.Echo, h *Handlers, jwtSecret string, rateLimit echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	if rateLimit != nil {
		g.Use(rateLimit)
	}
	g.Use(middleware.RequireRole("EXPLORER", "ORGANIZER"))

	// Booking lifecycle, explorer-facing.
	g.POST("/bookings", h.Booking.Create)
	g.PATCH("/bookings/:id", h.Booking.Revise)
	g.DELETE("/bookings/:id", h.Booking.Cancel)

	// Payment checkout on a booking the explorer owns.
	g.POST("/bookings/:id/checkout", h.Checkout.Create)

	// Coupon engine.
	g.POST("/coupons/validate", h.Coupon.Validate)
	g.POST("/bookings/:id/coupon", h.Coupon.Apply)
	g.DELETE("/bookings/:id/coupon", h.Coupon.Remove)

	// Organizer-only operations.
	organizer := middleware.RequireRole("ORGANIZER")
	g.POST("/coupons/:id/duplicate", h.Coupon.Duplicate, organizer)
	g.POST("/payments/:id/refund", h.Refund.Create, organizer)
	g.PATCH("/sessions/:id", h.Session.UpdateCapacity, organizer)
	g.DELETE("/sessions/:id", h.Session.Delete, organizer)
}
