// Package service contains the booking settlement core: capacity
// admission, the coupon engine, the payment gateway abstraction, the
// settlement state machine and the refund issuer.  Services hold the
// decision logic and delegate every invariant-bearing write to a
// store method that bundles the whole read-check-write sequence into
// one storage transaction.
package service

import (
	"context"
	"time"

	"github.com/roamly/experience-booking/internal/model"
	"github.com/roamly/experience-booking/internal/repository"
)

// CapacityBookingStore is the booking side of capacity admission.
// Each method is a single storage transaction that locks the session
// row, sums active guests and admits or rejects.
type CapacityBookingStore interface {
	CreateReserved(ctx context.Context, sessionID, explorerID uint64, guests uint32, hold time.Duration) (*model.Booking, error)
	ReviseGuests(ctx context.Context, bookingID, explorerID uint64, guests uint32) (*model.Booking, error)
	Cancel(ctx context.Context, bookingID, explorerID uint64) (sessionID uint64, err error)
}

// CapacitySessionStore is the session side of capacity management.
type CapacitySessionStore interface {
	Availability(ctx context.Context, sessionID uint64) (capacity, reserved uint32, err error)
	UpdateCapacity(ctx context.Context, sessionID, organizerID uint64, capacity uint32) error
	Delete(ctx context.Context, sessionID, organizerID uint64) error
}

// CapacityService enforces that reserved seats on a session never
// exceed its capacity, across concurrent booking and session edits.
type CapacityService struct {
	bookings CapacityBookingStore
	sessions CapacitySessionStore
	hold     time.Duration
}

// NewCapacityService constructs a CapacityService.  hold is the
// reservation hold deadline stamped on new bookings; zero disables
// the deadline.
func NewCapacityService(bookings CapacityBookingStore, sessions CapacitySessionStore, hold time.Duration) *CapacityService {
	return &CapacityService{bookings: bookings, sessions: sessions, hold: hold}
}

// Reserve admits a new booking of guests seats on a session.  The
// admission check and the insert run in one storage transaction;
// when two requests race for the last seats, exactly one commits.
func (s *CapacityService) Reserve(ctx context.Context, sessionID, explorerID uint64, guests uint32) (*model.Booking, error) {
	if sessionID == 0 || guests == 0 {
		return nil, repository.ErrConflict
	}
	return s.bookings.CreateReserved(ctx, sessionID, explorerID, guests, s.hold)
}

// Revise changes the guest count of an existing booking, re-running
// admission with the booking's own seats excluded from the reserved
// sum.
func (s *CapacityService) Revise(ctx context.Context, bookingID, explorerID uint64, guests uint32) (*model.Booking, error) {
	if bookingID == 0 || guests == 0 {
		return nil, repository.ErrConflict
	}
	return s.bookings.ReviseGuests(ctx, bookingID, explorerID, guests)
}

// Cancel releases a booking's seats by moving it to CANCELLED and
// returns the session the seats went back to.
func (s *CapacityService) Cancel(ctx context.Context, bookingID, explorerID uint64) (uint64, error) {
	return s.bookings.Cancel(ctx, bookingID, explorerID)
}

// Availability returns capacity, reserved and remaining seats for a
// session.  A display read: admissions never rely on it.
func (s *CapacityService) Availability(ctx context.Context, sessionID uint64) (capacity, reserved, remaining uint32, err error) {
	capacity, reserved, err = s.sessions.Availability(ctx, sessionID)
	if err != nil {
		return 0, 0, 0, err
	}
	if reserved > capacity {
		// Historical overbook (e.g. capacity was lowered by support
		// tooling outside this service); never report negative seats.
		return capacity, reserved, 0, nil
	}
	return capacity, reserved, capacity - reserved, nil
}

// SetCapacity lets an organizer resize a session.  Lowering below the
// reserved active guests fails with ErrCapacityBelowReserved; the
// check runs in the same transaction as the update.
func (s *CapacityService) SetCapacity(ctx context.Context, sessionID, organizerID uint64, capacity uint32) error {
	if capacity == 0 {
		return repository.ErrConflict
	}
	return s.sessions.UpdateCapacity(ctx, sessionID, organizerID, capacity)
}

// RemoveSession deletes a session that has no active reservations.
// Sessions with reservations can only be updated, never deleted.
func (s *CapacityService) RemoveSession(ctx context.Context, sessionID, organizerID uint64) error {
	return s.sessions.Delete(ctx, sessionID, organizerID)
}
