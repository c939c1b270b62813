package service

import (
	"context"
	"errors"

	"github.com/roamly/experience-booking/internal/model"
	"github.com/roamly/experience-booking/internal/payment"
)

var (
	// ErrNoProviderReference rejects refunding a payment that never
	// received an external reference (cash, or checkout abandoned
	// before the provider assigned one).
	ErrNoProviderReference = errors.New("payment has no provider reference to refund against")

	// ErrInvalidRefundAmount rejects non-positive amounts and amounts
	// above the captured total.
	ErrInvalidRefundAmount = errors.New("refund amount must be positive and within the captured amount")

	// ErrProviderUnavailable means the payment's provider has no
	// configured client in this deployment.
	ErrProviderUnavailable = errors.New("payment provider is not configured")
)

// RefundPaymentReader loads payments for refund issuance.
type RefundPaymentReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Payment, error)
}

// RefundAppender records issued refunds.
type RefundAppender interface {
	Create(ctx context.Context, ref *model.Refund) error
}

// RefundService issues provider refunds against settled payments and
// records them. Provider-side completion arrives asynchronously, so
// recorded refunds stay PENDING.
type RefundService struct {
	payments  RefundPaymentReader
	refunds   RefundAppender
	providers *payment.Registry
}

// NewRefundService constructs a RefundService.
func NewRefundService(payments RefundPaymentReader, refunds RefundAppender, providers *payment.Registry) *RefundService {
	return &RefundService{payments: payments, refunds: refunds, providers: providers}
}

// Issue refunds amount minor units of a payment at its provider and
// appends a PENDING refund row. The provider call comes first: a
// failed call leaves no refund record behind.
func (s *RefundService) Issue(ctx context.Context, paymentID uint64, amount int64, reason string) (*model.Refund, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.ProviderPaymentID == nil || *p.ProviderPaymentID == "" {
		return nil, ErrNoProviderReference
	}
	if amount <= 0 || amount > p.Amount {
		return nil, ErrInvalidRefundAmount
	}
	prov, ok := s.providers.Get(p.Provider)
	if !ok {
		return nil, ErrProviderUnavailable
	}

	res, err := prov.CreateRefund(ctx, payment.RefundRequest{
		ProviderPaymentID: *p.ProviderPaymentID,
		Amount:            amount,
		Currency:          p.Currency,
		Reason:            reason,
	})
	if err != nil {
		return nil, err
	}

	ref := &model.Refund{
		PaymentID: paymentID,
		Amount:    amount,
		Status:    model.RefundPending,
	}
	if reason != "" {
		ref.Reason = &reason
	}
	if res.ProviderRefundID != "" {
		ref.ProviderRefundID = &res.ProviderRefundID
	}
	if err := s.refunds.Create(ctx, ref); err != nil {
		return nil, err
	}
	return ref, nil
}
