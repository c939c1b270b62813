// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is not
// authorized to perform an operation on a resource owned by
// someone else, while ErrCapacityExceeded signals that a booking
// mutation would push a session past its seat capacity.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state, such as attempting to
// delete a session that still has active bookings. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrDuplicate is returned when a unique constraint rejects a write.
// It is the last line of defense behind the application-level checks
// (coupon_usages.booking_id, coupons.code); callers should surface it
// as a retryable conflict.
var ErrDuplicate = errors.New("duplicate")

// ErrSessionNotFound indicates that a session was not located in the DB.
var ErrSessionNotFound = errors.New("session not found")

// ErrBookingNotFound indicates that a booking was not located in the DB.
var ErrBookingNotFound = errors.New("booking not found")

// ErrPaymentNotFound indicates that a payment was not located in the DB.
var ErrPaymentNotFound = errors.New("payment not found")

// ErrCouponNotFound indicates that a coupon was not located in the DB.
var ErrCouponNotFound = errors.New("coupon not found")

// ErrUsageNotFound indicates that no coupon usage exists for a booking.
var ErrUsageNotFound = errors.New("coupon usage not found")

// ErrCapacityExceeded is returned when admitting a reservation would
// push the sum of active guests past the session capacity.
var ErrCapacityExceeded = errors.New("session capacity exceeded")

// ErrCapacityBelowReserved is returned when an organizer tries to
// lower a session's capacity below the number of already reserved
// guests.
var ErrCapacityBelowReserved = errors.New("capacity cannot be less than reserved")

// AdmitGuests decides seat admission: it accepts when the already
// reserved active guests plus the requested guests fit within the
// session capacity. Every capacity-gated write runs this check inside
// the same transaction as the read that produced reserved, so two
// concurrent admissions can never both pass against the same seats.
func AdmitGuests(capacity, reserved, requested uint32) error {
	if requested == 0 {
		return ErrConflict
	}
	// Widened so a huge requested value cannot wrap the sum below
	// capacity and sneak past the check.
	if uint64(reserved)+uint64(requested) > uint64(capacity) {
		return ErrCapacityExceeded
	}
	return nil
}

// isDuplicateKey reports whether err is a MySQL duplicate-entry error
// (1062), i.e. a unique constraint violation.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
