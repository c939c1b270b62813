package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roamly/experience-booking/internal/model"
	"github.com/roamly/experience-booking/internal/payment"
	"github.com/roamly/experience-booking/internal/repository"
)

type refundFake struct {
	payment *model.Payment
	created []*model.Refund
}

func (f *refundFake) GetByID(_ context.Context, id uint64) (*model.Payment, error) {
	if f.payment == nil || f.payment.ID != id {
		return nil, repository.ErrPaymentNotFound
	}
	return f.payment, nil
}

func (f *refundFake) Create(_ context.Context, ref *model.Refund) error {
	ref.ID = uint64(len(f.created) + 1)
	f.created = append(f.created, ref)
	return nil
}

func settledPayment() *model.Payment {
	ref := "pi_123"
	return &model.Payment{
		ID: 5, BookingID: 42, Provider: model.ProviderStripe,
		ProviderPaymentID: &ref, Amount: 10000, Currency: "EUR",
		Status: model.PaymentSucceeded,
	}
}

func TestRefundIssue(t *testing.T) {
	ctx := context.Background()

	t.Run("records a pending refund", func(t *testing.T) {
		f := &refundFake{payment: settledPayment()}
		prov := &fakeProvider{id: model.ProviderStripe}
		svc := NewRefundService(f, f, payment.NewRegistry(prov))

		ref, err := svc.Issue(ctx, 5, 2500, "weather cancellation")
		require.NoError(t, err)
		assert.Equal(t, model.RefundPending, ref.Status)
		assert.Equal(t, int64(2500), ref.Amount)
		require.NotNil(t, ref.ProviderRefundID)
		assert.Equal(t, "STRIPE-refund-1", *ref.ProviderRefundID)
		require.NotNil(t, ref.Reason)
		assert.Equal(t, "weather cancellation", *ref.Reason)
		assert.Len(t, f.created, 1)
	})

	t.Run("rejects payments without a provider reference", func(t *testing.T) {
		p := settledPayment()
		p.ProviderPaymentID = nil // cash settlement
		f := &refundFake{payment: p}
		svc := NewRefundService(f, f, payment.NewRegistry(&fakeProvider{id: model.ProviderStripe}))

		_, err := svc.Issue(ctx, 5, 2500, "")
		assert.ErrorIs(t, err, ErrNoProviderReference)
		assert.Empty(t, f.created)
	})

	t.Run("rejects out-of-range amounts", func(t *testing.T) {
		f := &refundFake{payment: settledPayment()}
		svc := NewRefundService(f, f, payment.NewRegistry(&fakeProvider{id: model.ProviderStripe}))

		_, err := svc.Issue(ctx, 5, 0, "")
		assert.ErrorIs(t, err, ErrInvalidRefundAmount)
		_, err = svc.Issue(ctx, 5, 10001, "")
		assert.ErrorIs(t, err, ErrInvalidRefundAmount)
	})

	t.Run("rejects providers without a configured client", func(t *testing.T) {
		f := &refundFake{payment: settledPayment()}
		svc := NewRefundService(f, f, payment.NewRegistry())

		_, err := svc.Issue(ctx, 5, 2500, "")
		assert.ErrorIs(t, err, ErrProviderUnavailable)
	})

	t.Run("storage failure surfaces", func(t *testing.T) {
		f := &refundFake{payment: settledPayment()}
		svc := NewRefundService(f, failingRefundAppender{}, payment.NewRegistry(&fakeProvider{id: model.ProviderStripe}))

		_, err := svc.Issue(ctx, 5, 2500, "")
		assert.Error(t, err)
		assert.Empty(t, f.created)
	})
}

type failingRefundAppender struct{}

func (failingRefundAppender) Create(context.Context, *model.Refund) error {
	return errors.New("storage down")
}
