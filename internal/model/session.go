package model

import "time"

// Session is a single scheduled occurrence of an Experience with a
// finite seat capacity.  The sum of guests over bookings in the
// PENDING or CONFIRMED state referencing a session must never exceed
// its capacity; that invariant is enforced transactionally in the
// repository layer.
//
// Fields:
//  ID            – primary key identifier.
//  ExperienceID  – experience this session belongs to.
//  Capacity      – maximum number of guests across active bookings.
//  StartsAt      – when the session takes place.
//  PriceOverride – optional per-guest price replacing the experience
//                  price for this session (major units).
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Session struct {
	ID            uint64    // sessions.id
	ExperienceID  uint64    // sessions.experience_id
	Capacity      uint32    // sessions.capacity
	StartsAt      time.Time // sessions.starts_at
	PriceOverride *float64  // sessions.price_override (nullable)
	CreatedAt     time.Time // sessions.created_at
	UpdatedAt     time.Time // sessions.updated_at
}
