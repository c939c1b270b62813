package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/roamly/experience-booking/internal/model"
	"github.com/roamly/experience-booking/internal/repository"
	"github.com/roamly/experience-booking/internal/service"
)

// CouponHandler exposes coupon validation, application, removal and
// duplication.  Ownership rules live here, at the resource boundary:
// only a booking's explorer touches its coupon, and organizers only
// duplicate coupons on their own experiences.
type CouponHandler struct {
	Coupons  *service.CouponService
	Bookings service.BookingContextReader
	Repo     *repository.CouponRepo
}

// Validate handles POST /v1/coupons/validate: a dry-run quote without
// any side effect on the coupon or a booking.
func (h *CouponHandler) Validate(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req struct {
		Code         string  `json:"code"`
		ExperienceID uint64  `json:"experience_id"`
		SessionID    uint64  `json:"session_id"`
		Amount       float64 `json:"amount"`
	}
	if err := c.Bind(&req); err != nil || req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code is required"})
	}

	quote, err := h.Coupons.Validate(c.Request().Context(), req.Code, req.ExperienceID, req.SessionID, uid, req.Amount)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"coupon_id":       quote.CouponID,
		"discount_amount": quote.DiscountAmount,
		"final_price":     quote.FinalPrice,
	})
}

// Apply handles POST /v1/bookings/:id/coupon.
func (h *CouponHandler) Apply(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&req); err != nil || req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code is required"})
	}

	ctx := c.Request().Context()
	if err := h.requireBookingOwner(c, bookingID, uid); err != nil {
		return err
	}
	newPrice, err := h.Coupons.Apply(ctx, bookingID, req.Code, uid)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking_id": bookingID, "total_price": newPrice})
}

// Remove handles DELETE /v1/bookings/:id/coupon, restoring the price
// snapshotted when the coupon was applied.
func (h *CouponHandler) Remove(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	if err := h.requireBookingOwner(c, bookingID, uid); err != nil {
		return err
	}
	restored, err := h.Coupons.Remove(c.Request().Context(), bookingID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking_id": bookingID, "total_price": restored})
}

// Duplicate handles POST /v1/coupons/:id/duplicate (ORGANIZER role).
// Scoped coupons may only be duplicated by the organizer owning the
// scoped experience; unscoped ones only by their creator.
func (h *CouponHandler) Duplicate(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	couponID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid coupon id"})
	}

	ctx := c.Request().Context()
	src, err := h.Repo.GetByID(ctx, couponID)
	if err != nil {
		return httpError(c, err)
	}
	if src.ExperienceID != nil {
		organizer, err := h.Repo.ExperienceOrganizer(ctx, *src.ExperienceID)
		if err != nil {
			return httpError(c, err)
		}
		if organizer != uid {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	} else if src.CreatedByID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	clone, err := h.Coupons.Duplicate(ctx, couponID, uid)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, couponJSON(clone))
}

// requireBookingOwner rejects requests on a booking from anyone but
// its explorer.  Returns nil when the caller may proceed; otherwise
// the response has already been written.
func (h *CouponHandler) requireBookingOwner(c echo.Context, bookingID, uid uint64) error {
	bc, err := h.Bookings.Context(c.Request().Context(), bookingID)
	if err != nil {
		return httpError(c, err)
	}
	if bc.ExplorerID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return nil
}

// couponJSON renders a coupon for API responses.
func couponJSON(cp *model.Coupon) echo.Map {
	m := echo.Map{
		"id":                  cp.ID,
		"code":                cp.Code,
		"discount_percentage": cp.DiscountPercentage,
		"used_count":          cp.UsedCount,
	}
	if cp.MaxReductionAmount != nil {
		m["max_reduction_amount"] = *cp.MaxReductionAmount
	}
	if cp.MaxUses != nil {
		m["max_uses"] = *cp.MaxUses
	}
	if cp.ValidFrom != nil {
		m["valid_from"] = *cp.ValidFrom
	}
	if cp.ExpiresAt != nil {
		m["expires_at"] = *cp.ExpiresAt
	}
	if cp.ExperienceID != nil {
		m["experience_id"] = *cp.ExperienceID
	}
	if cp.SessionID != nil {
		m["session_id"] = *cp.SessionID
	}
	return m
}
