// Package handler contains the HTTP layer: request decoding,
// authorization at the resource boundary and translation of domain
// errors into status codes.  Invariant enforcement lives below, in
// the services and repositories.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/roamly/experience-booking/internal/repository"
	"github.com/roamly/experience-booking/internal/service"
)

// getUserID extracts the authenticated account id stored in the
// context by the JWT middleware.  The claim arrives as whatever type
// the JSON decoder produced, so several representations are accepted.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses the named numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

// httpError translates a domain error into the matching JSON error
// response.  Unrecognized errors become an opaque 500 so internal
// details never leak to clients.
func httpError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrSessionNotFound),
		errors.Is(err, repository.ErrBookingNotFound),
		errors.Is(err, repository.ErrPaymentNotFound),
		errors.Is(err, repository.ErrCouponNotFound),
		errors.Is(err, repository.ErrUsageNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})

	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})

	case errors.Is(err, repository.ErrCapacityExceeded),
		errors.Is(err, repository.ErrCapacityBelowReserved),
		errors.Is(err, service.ErrCouponAlreadyApplied),
		errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})

	case errors.Is(err, repository.ErrDuplicate):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflicting update, please retry"})

	case errors.Is(err, service.ErrCouponNotYetValid),
		errors.Is(err, service.ErrCouponExpired),
		errors.Is(err, service.ErrCouponExhausted),
		errors.Is(err, service.ErrCouponAlreadyUsed),
		errors.Is(err, service.ErrCouponScopeMismatch),
		errors.Is(err, service.ErrCouponSelfRedemption):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})

	case errors.Is(err, service.ErrNoProviderAvailable),
		errors.Is(err, service.ErrNoProviderReference),
		errors.Is(err, service.ErrInvalidRefundAmount),
		errors.Is(err, service.ErrProviderUnavailable):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})

	case errors.Is(err, service.ErrAllProvidersFailed):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": err.Error()})

	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
