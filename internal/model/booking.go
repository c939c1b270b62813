package model

import "time"

// BookingStatus enumerates the lifecycle states of a booking.
type BookingStatus string

// Booking lifecycle states.  PENDING and CONFIRMED are the "active"
// states that count against session capacity.
const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingExpired   BookingStatus = "EXPIRED"
	BookingCompleted BookingStatus = "COMPLETED"
)

// Booking records an explorer's reservation of a number of seats on a
// single session.  TotalPrice is mutated only by creation (unit price
// times guests), coupon application and coupon removal.  PaymentStatus
// mirrors the linked payment's status and stays nil until a payment
// exists.
//
// Fields:
//  ID            – primary key identifier.
//  SessionID     – session being booked.
//  ExplorerID    – user who requested the booking.
//  Guests        – number of seats reserved (positive).
//  TotalPrice    – total price in major currency units.
//  Status        – booking lifecycle state.
//  PaymentStatus – mirror of the active payment's status (nullable).
//  PaymentID     – active payment reference (nullable).
//  ExpiresAt     – reservation hold deadline (nullable); cleared on
//                  confirmed settlement.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Booking struct {
	ID            uint64         // bookings.id
	SessionID     uint64         // bookings.session_id
	ExplorerID    uint64         // bookings.explorer_id
	Guests        uint32         // bookings.guests
	TotalPrice    float64        // bookings.total_price (major units)
	Status        BookingStatus  // bookings.status
	PaymentStatus *PaymentStatus // bookings.payment_status (nullable)
	PaymentID     *uint64        // bookings.payment_id (nullable)
	ExpiresAt     *time.Time     // bookings.expires_at (nullable)
	CreatedAt     time.Time      // bookings.created_at
	UpdatedAt     time.Time      // bookings.updated_at
}

// Active reports whether the booking counts against session capacity.
func (b *Booking) Active() bool {
	return b.Status == BookingPending || b.Status == BookingConfirmed
}
