// Package payment contains the gateway abstraction over external
// payment providers.  Each provider implements the same two-call
// surface (redirect checkout creation and refund creation) behind the
// Provider interface; the checkout service composes them into an
// ordered fallback chain.  The CASH pseudo-provider never appears
// here: it performs no external call and is short-circuited in the
// checkout service.
package payment

import (
	"context"
	"errors"

	"github.com/roamly/experience-booking/internal/model"
)

// CheckoutRequest carries everything a provider needs to open a
// redirect checkout.  Amount is in integer minor currency units.
// Metadata is echoed back verbatim in the provider's webhook
// notifications and carries the booking/payment correlation keys.
type CheckoutRequest struct {
	Reference     string            // our reference for the charge, e.g. "booking-42"
	Amount        int64             // minor units
	Currency      string            // ISO 4217 code
	Description   string            // line item shown on the provider page
	SuccessURL    string            // browser redirect after approval
	CancelURL     string            // browser redirect after abandonment
	CustomerEmail string            // optional, prefills the provider page
	Metadata      map[string]string // correlation keys, echoed in webhooks
}

// CheckoutResult is the provider's answer to a checkout request.
// ProviderPaymentID may be empty when the provider only assigns a
// reference later (it then arrives with the first webhook).
type CheckoutResult struct {
	RedirectURL       string
	ProviderPaymentID string
}

// RefundRequest asks the provider holding a charge to return part or
// all of it.  Amount is in minor units.
type RefundRequest struct {
	ProviderPaymentID string
	Amount            int64
	Currency          string
	Reason            string
}

// RefundResult carries the provider's refund reference if one was
// assigned synchronously.
type RefundResult struct {
	ProviderRefundID string
}

// Provider is the uniform interface over heterogeneous payment
// backends.  Implementations are stateless HTTP clients; all calls
// honor the passed context.
type Provider interface {
	ID() model.PaymentProvider
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	CreateRefund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

// ErrNotConfigured is returned by providers constructed without
// credentials.  Such providers are left out of the registry.
var ErrNotConfigured = errors.New("payment provider not configured")

// Registry holds the set of actually implemented-and-configured
// providers.  Candidate lists are filtered through it, so dispatch
// stays closed over the providers registered at startup.
type Registry struct {
	providers map[model.PaymentProvider]Provider
	order     []model.PaymentProvider
}

// NewRegistry builds a registry from the given providers.  Nil
// entries are skipped so callers can pass conditionally constructed
// clients directly.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[model.PaymentProvider]Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			continue
		}
		if _, dup := r.providers[p.ID()]; dup {
			continue
		}
		r.providers[p.ID()] = p
		r.order = append(r.order, p.ID())
	}
	return r
}

// Get returns the provider registered under id.
func (r *Registry) Get(id model.PaymentProvider) (Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

// Has reports whether a provider is registered under id.
func (r *Registry) Has(id model.PaymentProvider) bool {
	_, ok := r.providers[id]
	return ok
}

// IDs returns the registered provider ids in registration order.
func (r *Registry) IDs() []model.PaymentProvider {
	out := make([]model.PaymentProvider, len(r.order))
	copy(out, r.order)
	return out
}
