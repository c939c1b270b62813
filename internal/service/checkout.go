package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/roamly/experience-booking/internal/model"
	"github.com/roamly/experience-booking/internal/payment"
	"github.com/roamly/experience-booking/internal/queue"
	"github.com/roamly/experience-booking/internal/repository"
)

var (
	// ErrNoProviderAvailable means no candidate provider survived
	// filtering against the configured and implemented set.
	ErrNoProviderAvailable = errors.New("no payment provider available")

	// ErrAllProvidersFailed wraps the last provider error after every
	// candidate in the fallback chain was tried.
	ErrAllProvidersFailed = errors.New("all payment providers failed")
)

// CheckoutPaymentStore is the payment side of checkout persistence.
type CheckoutPaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	SetProviderReference(ctx context.Context, paymentID uint64, provider model.PaymentProvider, providerPaymentID string) error
	ConfirmCash(ctx context.Context, bookingID, paymentID uint64) error
}

// CheckoutBookingStore is the booking side of checkout persistence.
type CheckoutBookingStore interface {
	BookingContextReader
	AttachPayment(ctx context.Context, bookingID, paymentID uint64, status model.PaymentStatus) error
}

// CheckoutConfig fixes the provider preference order for a deployment.
type CheckoutConfig struct {
	DefaultProvider  model.PaymentProvider
	EnabledProviders []model.PaymentProvider
}

// CheckoutResult is what the API hands back to the booker's browser.
type CheckoutResult struct {
	PaymentID   uint64
	Provider    model.PaymentProvider
	RedirectURL string
}

// CheckoutService turns a priced booking into a redirect checkout at
// one of the configured payment providers, falling back through the
// preference order when a provider is down.
type CheckoutService struct {
	bookings  CheckoutBookingStore
	payments  CheckoutPaymentStore
	providers *payment.Registry
	cfg       CheckoutConfig
	notify    func(ctx context.Context, ev queue.BookingConfirmedEvent)
}

// NewCheckoutService constructs a CheckoutService.  notify is called
// when a cash checkout confirms the booking on the spot (online
// providers confirm later, through settlement); nil disables
// notifications.
func NewCheckoutService(bookings CheckoutBookingStore, payments CheckoutPaymentStore, providers *payment.Registry, cfg CheckoutConfig, notify func(ctx context.Context, ev queue.BookingConfirmedEvent)) *CheckoutService {
	return &CheckoutService{bookings: bookings, payments: payments, providers: providers, cfg: cfg, notify: notify}
}

// Candidates builds the ordered provider fallback list: the requested
// provider first, then the deployment default, then the remaining
// enabled providers, deduplicated and filtered through usable.  CASH
// needs no client, so callers treat it as always usable.
func Candidates(requested, def model.PaymentProvider, enabled []model.PaymentProvider, usable func(model.PaymentProvider) bool) []model.PaymentProvider {
	seen := make(map[model.PaymentProvider]bool, len(enabled)+2)
	var out []model.PaymentProvider
	add := func(id model.PaymentProvider) {
		if id == "" || seen[id] || !model.KnownProvider(id) || !usable(id) {
			return
		}
		seen[id] = true
		out = append(out, id)
	}
	add(requested)
	add(def)
	for _, id := range enabled {
		add(id)
	}
	return out
}

// MinorUnits converts a major-unit amount (e.g. 12.34) to integer
// minor units (1234).  Provider APIs and the payments table both
// carry minor units.
func MinorUnits(major float64) int64 {
	return int64(math.Round(major * 100))
}

// MajorUnits is the inverse of MinorUnits.
func MajorUnits(minor int64) float64 {
	return float64(minor) / 100
}

// CreateCheckout opens a payment for a booking.  CASH short-circuits:
// the payment goes straight to PROCESSING and the booking to
// CONFIRMED, settlement happening on site.  Online providers are
// tried in candidate order; the first that answers wins, and the
// payment row is corrected when the winner differs from the first
// choice.
func (s *CheckoutService) CreateCheckout(ctx context.Context, bookingID uint64, requested model.PaymentProvider, successURL, cancelURL string) (*CheckoutResult, error) {
	bc, err := s.bookings.Context(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if bc.Status != model.BookingPending && bc.Status != model.BookingConfirmed {
		return nil, repository.ErrConflict
	}

	usable := func(id model.PaymentProvider) bool {
		return id == model.ProviderCash || s.providers.Has(id)
	}
	candidates := Candidates(requested, s.cfg.DefaultProvider, s.cfg.EnabledProviders, usable)
	if len(candidates) == 0 {
		return nil, ErrNoProviderAvailable
	}

	amount := MinorUnits(bc.TotalPrice)

	if candidates[0] == model.ProviderCash {
		p := &model.Payment{
			BookingID: bookingID,
			Provider:  model.ProviderCash,
			Amount:    amount,
			Currency:  bc.Currency,
			Status:    model.PaymentProcessing,
		}
		if err := s.payments.Create(ctx, p); err != nil {
			return nil, err
		}
		if err := s.payments.ConfirmCash(ctx, bookingID, p.ID); err != nil {
			return nil, err
		}
		if s.notify != nil {
			s.notify(ctx, queue.BookingConfirmedEvent{
				BookingID:        bookingID,
				PaymentID:        p.ID,
				Provider:         string(model.ProviderCash),
				AmountMinorUnits: amount,
				Currency:         bc.Currency,
				ConfirmedAt:      time.Now().UTC().Format(time.RFC3339),
			})
		}
		return &CheckoutResult{PaymentID: p.ID, Provider: model.ProviderCash, RedirectURL: successURL}, nil
	}

	// CASH further down the chain would swallow failures of the online
	// providers ahead of it; drop it and let the chain fail loudly.
	online := candidates[:0]
	for _, id := range candidates {
		if id != model.ProviderCash {
			online = append(online, id)
		}
	}

	p := &model.Payment{
		BookingID: bookingID,
		Provider:  online[0],
		Amount:    amount,
		Currency:  bc.Currency,
		Status:    model.PaymentRequiresMethod,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}

	req := payment.CheckoutRequest{
		Reference:   fmt.Sprintf("booking-%d", bookingID),
		Amount:      amount,
		Currency:    bc.Currency,
		Description: fmt.Sprintf("%s x%d", bc.Title, bc.Guests),
		SuccessURL:  successURL,
		CancelURL:   cancelURL,
		Metadata: map[string]string{
			"booking_id": strconv.FormatUint(bookingID, 10),
			"payment_id": strconv.FormatUint(p.ID, 10),
		},
	}

	var lastErr error
	for _, id := range online {
		prov, ok := s.providers.Get(id)
		if !ok {
			continue
		}
		res, err := prov.CreateCheckout(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}
		if err := s.payments.SetProviderReference(ctx, p.ID, id, res.ProviderPaymentID); err != nil {
			return nil, err
		}
		if err := s.bookings.AttachPayment(ctx, bookingID, p.ID, model.PaymentRequiresMethod); err != nil {
			return nil, err
		}
		return &CheckoutResult{PaymentID: p.ID, Provider: id, RedirectURL: res.RedirectURL}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrAllProvidersFailed, lastErr)
}
