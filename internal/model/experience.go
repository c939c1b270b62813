package model

import "time"

// Experience represents a bookable group activity offered by an
// organizer.  Sessions are scheduled occurrences of an experience;
// the experience carries the default per-guest price that applies
// when a session has no price override.
//
// Fields:
//  ID          – primary key identifier.
//  OrganizerID – user who owns and manages the experience.
//  Title       – public name of the activity.
//  Price       – per-guest price in major currency units.
//  Currency    – ISO 4217 currency code (e.g. "EUR").
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Experience struct {
	ID          uint64    // experiences.id
	OrganizerID uint64    // experiences.organizer_id
	Title       string    // experiences.title
	Price       float64   // experiences.price (major units)
	Currency    string    // experiences.currency
	CreatedAt   time.Time // experiences.created_at
	UpdatedAt   time.Time // experiences.updated_at
}
