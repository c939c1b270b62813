package model

import "time"

// RefundStatus enumerates refund states.  Refund completion is
// reconciled through a later provider notification; this service only
// ever records PENDING entries.
type RefundStatus string

// Refund states.
const (
	RefundPending RefundStatus = "PENDING"
)

// Refund is an append-only audit entry for a (partial) refund issued
// against a payment.  A payment may carry several refunds.
//
// Fields:
//  ID               – primary key identifier.
//  PaymentID        – payment the refund was issued against.
//  Amount           – refunded amount in minor units.
//  Reason           – free-form reason (nullable).
//  Status           – refund state.
//  ProviderRefundID – external refund reference (nullable).
//  CreatedAt        – creation timestamp.
type Refund struct {
	ID               uint64       // refunds.id
	PaymentID        uint64       // refunds.payment_id
	Amount           int64        // refunds.amount (minor units)
	Reason           *string      // refunds.reason (nullable)
	Status           RefundStatus // refunds.status
	ProviderRefundID *string      // refunds.provider_refund_id (nullable)
	CreatedAt        time.Time    // refunds.created_at
}
