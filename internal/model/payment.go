package model

import "time"

// PaymentProvider identifies a payment backend.  The set is closed:
// provider dispatch happens through typed constants so that adding a
// backend is a compile-time change, never a stringly-typed lookup.
type PaymentProvider string

// Supported payment providers.  CASH is a pseudo-provider settled
// out-of-band by staff; it never performs an external call.
const (
	ProviderStripe  PaymentProvider = "STRIPE"
	ProviderPayPal  PaymentProvider = "PAYPAL"
	ProviderPayzone PaymentProvider = "PAYZONE"
	ProviderCash    PaymentProvider = "CASH"
)

// KnownProvider reports whether id is one of the supported provider
// constants.
func KnownProvider(id PaymentProvider) bool {
	switch id {
	case ProviderStripe, ProviderPayPal, ProviderPayzone, ProviderCash:
		return true
	}
	return false
}

// PaymentStatus enumerates the settlement states of a payment.
type PaymentStatus string

// Payment settlement states.
const (
	PaymentRequiresMethod PaymentStatus = "REQUIRES_PAYMENT_METHOD"
	PaymentProcessing     PaymentStatus = "PROCESSING"
	PaymentSucceeded      PaymentStatus = "SUCCEEDED"
	PaymentCancelled      PaymentStatus = "CANCELLED"
)

// Payment records a checkout attempt against an external provider.
// Amounts are in integer minor currency units (cents); bookings and
// coupons use major units, and the conversion happens exactly once at
// the checkout/refund service boundary.  Payments are created by the
// checkout flow and mutated only by the settlement state machine or
// the refund issuer; rows are never deleted.
//
// Fields:
//  ID                – primary key identifier.
//  BookingID         – booking this payment belongs to.
//  Provider          – provider that holds (or will hold) the charge.
//  ProviderPaymentID – external reference, nil until acknowledged.
//  Amount            – charge amount in minor units.
//  Currency          – ISO 4217 currency code.
//  Status            – settlement state.
//  ErrorCode         – provider error code on failure (nullable).
//  ErrorMessage      – provider error text on failure (nullable).
//  ReceiptURL        – provider receipt URL once captured (nullable).
//  CapturedAt        – when funds were captured (nullable).
//  RefundedAt        – when the last refund was recorded (nullable).
//  RefundedAmount    – cumulative refunded minor units (nullable).
//  CreatedAt         – creation timestamp.
//  UpdatedAt         – last update timestamp.
type Payment struct {
	ID                uint64          // payments.id
	BookingID         uint64          // payments.booking_id
	Provider          PaymentProvider // payments.provider
	ProviderPaymentID *string         // payments.provider_payment_id (nullable)
	Amount            int64           // payments.amount (minor units)
	Currency          string          // payments.currency
	Status            PaymentStatus   // payments.status
	ErrorCode         *string         // payments.error_code (nullable)
	ErrorMessage      *string         // payments.error_message (nullable)
	ReceiptURL        *string         // payments.receipt_url (nullable)
	CapturedAt        *time.Time      // payments.captured_at (nullable)
	RefundedAt        *time.Time      // payments.refunded_at (nullable)
	RefundedAmount    *int64          // payments.refunded_amount (nullable)
	CreatedAt         time.Time       // payments.created_at
	UpdatedAt         time.Time       // payments.updated_at
}
