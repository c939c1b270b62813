// Package queue defines the message payloads exchanged over the
// broker, the publisher for settlement events and the background
// consumer that turns them into the booking audit log.
package queue

// BookingConfirmedEvent is published when a payment settles and its
// booking flips to CONFIRMED. It carries enough for downstream
// consumers to log or notify without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID        uint64 `json:"booking_id"`
	PaymentID        uint64 `json:"payment_id"`
	Provider         string `json:"provider"`
	AmountMinorUnits int64  `json:"amount_minor_units"`
	Currency         string `json:"currency"`
	ConfirmedAt      string `json:"confirmed_at"`
}
