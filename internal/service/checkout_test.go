package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roamly/experience-booking/internal/model"
	"github.com/roamly/experience-booking/internal/payment"
	"github.com/roamly/experience-booking/internal/queue"
	"github.com/roamly/experience-booking/internal/repository"
)

type checkoutFake struct {
	bc          *repository.BookingContext
	payments    map[uint64]*model.Payment
	nextID      uint64
	attached    []model.PaymentStatus
	cashBooking uint64
}

func newCheckoutFake(bc *repository.BookingContext) *checkoutFake {
	return &checkoutFake{bc: bc, payments: make(map[uint64]*model.Payment)}
}

func (f *checkoutFake) Context(_ context.Context, bookingID uint64) (*repository.BookingContext, error) {
	if f.bc == nil || f.bc.BookingID != bookingID {
		return nil, repository.ErrBookingNotFound
	}
	return f.bc, nil
}

func (f *checkoutFake) AttachPayment(_ context.Context, bookingID, paymentID uint64, status model.PaymentStatus) error {
	f.attached = append(f.attached, status)
	return nil
}

func (f *checkoutFake) Create(_ context.Context, p *model.Payment) error {
	f.nextID++
	p.ID = f.nextID
	f.payments[p.ID] = p
	return nil
}

func (f *checkoutFake) SetProviderReference(_ context.Context, paymentID uint64, provider model.PaymentProvider, ref string) error {
	p := f.payments[paymentID]
	p.Provider = provider
	if ref != "" {
		p.ProviderPaymentID = &ref
	}
	return nil
}

func (f *checkoutFake) ConfirmCash(_ context.Context, bookingID, paymentID uint64) error {
	f.cashBooking = bookingID
	return nil
}

// fakeProvider fails checkouts with the configured error, or answers
// with canned results.
type fakeProvider struct {
	id    model.PaymentProvider
	fail  error
	calls int
}

func (p *fakeProvider) ID() model.PaymentProvider { return p.id }

func (p *fakeProvider) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (*payment.CheckoutResult, error) {
	p.calls++
	if p.fail != nil {
		return nil, p.fail
	}
	return &payment.CheckoutResult{
		RedirectURL:       "https://pay.example/" + string(p.id),
		ProviderPaymentID: string(p.id) + "-ref-1",
	}, nil
}

func (p *fakeProvider) CreateRefund(_ context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	return &payment.RefundResult{ProviderRefundID: string(p.id) + "-refund-1"}, nil
}

func testBookingContext() *repository.BookingContext {
	return &repository.BookingContext{
		BookingID: 42, SessionID: 7, ExperienceID: 3, ExplorerID: 2,
		Title: "Desert stargazing", Guests: 2,
		TotalPrice: 123.45, Currency: "EUR", Status: model.BookingPending,
	}
}

func TestCandidates(t *testing.T) {
	all := func(model.PaymentProvider) bool { return true }
	only := func(ids ...model.PaymentProvider) func(model.PaymentProvider) bool {
		set := make(map[model.PaymentProvider]bool)
		for _, id := range ids {
			set[id] = true
		}
		return func(id model.PaymentProvider) bool { return set[id] }
	}

	t.Run("requested first then default then enabled", func(t *testing.T) {
		got := Candidates(model.ProviderPayPal, model.ProviderStripe,
			[]model.PaymentProvider{model.ProviderStripe, model.ProviderPayPal, model.ProviderPayzone}, all)
		assert.Equal(t, []model.PaymentProvider{model.ProviderPayPal, model.ProviderStripe, model.ProviderPayzone}, got)
	})

	t.Run("deduplicates", func(t *testing.T) {
		got := Candidates(model.ProviderStripe, model.ProviderStripe,
			[]model.PaymentProvider{model.ProviderStripe}, all)
		assert.Equal(t, []model.PaymentProvider{model.ProviderStripe}, got)
	})

	t.Run("filters unusable and unknown", func(t *testing.T) {
		got := Candidates("ACME", model.ProviderStripe,
			[]model.PaymentProvider{model.ProviderPayPal, model.ProviderPayzone},
			only(model.ProviderStripe, model.ProviderPayzone))
		assert.Equal(t, []model.PaymentProvider{model.ProviderStripe, model.ProviderPayzone}, got)
	})

	t.Run("empty when nothing usable", func(t *testing.T) {
		got := Candidates("", model.ProviderStripe,
			[]model.PaymentProvider{model.ProviderPayPal}, only())
		assert.Empty(t, got)
	})
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(12345), MinorUnits(123.45))
	assert.Equal(t, int64(100), MinorUnits(1.0))
	assert.Equal(t, int64(30), MinorUnits(0.1+0.2), "binary float noise must round away")
	assert.Equal(t, int64(995), MinorUnits(9.95))
	assert.Equal(t, 9.95, MajorUnits(995))
}

func TestCheckoutFallsBackToNextProvider(t *testing.T) {
	fake := newCheckoutFake(testBookingContext())
	stripe := &fakeProvider{id: model.ProviderStripe, fail: errors.New("stripe down")}
	paypal := &fakeProvider{id: model.ProviderPayPal}
	reg := payment.NewRegistry(stripe, paypal)

	svc := NewCheckoutService(fake, fake, reg, CheckoutConfig{
		DefaultProvider:  model.ProviderStripe,
		EnabledProviders: []model.PaymentProvider{model.ProviderStripe, model.ProviderPayPal},
	}, nil)

	res, err := svc.CreateCheckout(context.Background(), 42, "", "https://ok", "https://ko")
	require.NoError(t, err)
	assert.Equal(t, model.ProviderPayPal, res.Provider)
	assert.Equal(t, "https://pay.example/PAYPAL", res.RedirectURL)
	assert.Equal(t, 1, stripe.calls)
	assert.Equal(t, 1, paypal.calls)

	// The payment row was corrected to the provider that actually won.
	p := fake.payments[res.PaymentID]
	assert.Equal(t, model.ProviderPayPal, p.Provider)
	require.NotNil(t, p.ProviderPaymentID)
	assert.Equal(t, "PAYPAL-ref-1", *p.ProviderPaymentID)
	assert.Equal(t, int64(12345), p.Amount)
}

func TestCheckoutAllProvidersFailed(t *testing.T) {
	fake := newCheckoutFake(testBookingContext())
	stripe := &fakeProvider{id: model.ProviderStripe, fail: errors.New("stripe down")}
	paypal := &fakeProvider{id: model.ProviderPayPal, fail: errors.New("paypal down")}
	reg := payment.NewRegistry(stripe, paypal)

	svc := NewCheckoutService(fake, fake, reg, CheckoutConfig{
		DefaultProvider:  model.ProviderStripe,
		EnabledProviders: []model.PaymentProvider{model.ProviderStripe, model.ProviderPayPal},
	}, nil)

	_, err := svc.CreateCheckout(context.Background(), 42, "", "https://ok", "https://ko")
	require.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.Contains(t, err.Error(), "paypal down", "last provider error is surfaced")
}

func TestCheckoutCashShortCircuits(t *testing.T) {
	fake := newCheckoutFake(testBookingContext())
	reg := payment.NewRegistry() // no online providers registered

	var published []queue.BookingConfirmedEvent
	notify := func(_ context.Context, ev queue.BookingConfirmedEvent) {
		published = append(published, ev)
	}
	svc := NewCheckoutService(fake, fake, reg, CheckoutConfig{
		DefaultProvider:  model.ProviderStripe,
		EnabledProviders: []model.PaymentProvider{model.ProviderStripe, model.ProviderCash},
	}, notify)

	res, err := svc.CreateCheckout(context.Background(), 42, model.ProviderCash, "https://ok", "https://ko")
	require.NoError(t, err)
	assert.Equal(t, model.ProviderCash, res.Provider)
	assert.Equal(t, "https://ok", res.RedirectURL, "cash redirects straight to the success page")
	assert.Equal(t, uint64(42), fake.cashBooking)

	p := fake.payments[res.PaymentID]
	assert.Equal(t, model.PaymentProcessing, p.Status)
	assert.Nil(t, p.ProviderPaymentID)

	// Cash confirms on the spot, so the confirmation event fires from
	// checkout rather than from settlement.
	require.Len(t, published, 1)
	assert.Equal(t, uint64(42), published[0].BookingID)
	assert.Equal(t, res.PaymentID, published[0].PaymentID)
	assert.Equal(t, "CASH", published[0].Provider)
	assert.Equal(t, int64(12345), published[0].AmountMinorUnits)
	assert.Equal(t, "EUR", published[0].Currency)
	assert.NotEmpty(t, published[0].ConfirmedAt)
}

func TestCheckoutRequestedProviderWinsOverDefault(t *testing.T) {
	fake := newCheckoutFake(testBookingContext())
	stripe := &fakeProvider{id: model.ProviderStripe}
	payzone := &fakeProvider{id: model.ProviderPayzone}
	reg := payment.NewRegistry(stripe, payzone)

	svc := NewCheckoutService(fake, fake, reg, CheckoutConfig{
		DefaultProvider:  model.ProviderStripe,
		EnabledProviders: []model.PaymentProvider{model.ProviderStripe, model.ProviderPayzone},
	}, nil)

	res, err := svc.CreateCheckout(context.Background(), 42, model.ProviderPayzone, "https://ok", "https://ko")
	require.NoError(t, err)
	assert.Equal(t, model.ProviderPayzone, res.Provider)
	assert.Equal(t, 0, stripe.calls)
}

func TestCheckoutRejectsSettledBooking(t *testing.T) {
	bc := testBookingContext()
	bc.Status = model.BookingCancelled
	fake := newCheckoutFake(bc)
	reg := payment.NewRegistry(&fakeProvider{id: model.ProviderStripe})

	svc := NewCheckoutService(fake, fake, reg, CheckoutConfig{
		DefaultProvider:  model.ProviderStripe,
		EnabledProviders: []model.PaymentProvider{model.ProviderStripe},
	}, nil)

	_, err := svc.CreateCheckout(context.Background(), 42, "", "https://ok", "https://ko")
	assert.ErrorIs(t, err, repository.ErrConflict)
}
