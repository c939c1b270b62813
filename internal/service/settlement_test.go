package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roamly/experience-booking/internal/model"
	"github.com/roamly/experience-booking/internal/queue"
	"github.com/roamly/experience-booking/internal/repository"
)

const testSecret = "whsec_test"

func sign(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

type settlementFake struct {
	payment   *model.Payment
	completed []string
	succeeded int
	failed    []string
}

func (f *settlementFake) GetByID(_ context.Context, id uint64) (*model.Payment, error) {
	if f.payment == nil || f.payment.ID != id {
		return nil, repository.ErrPaymentNotFound
	}
	return f.payment, nil
}

func (f *settlementFake) MarkCheckoutCompleted(_ context.Context, paymentID uint64, ref string) error {
	f.completed = append(f.completed, ref)
	return nil
}

func (f *settlementFake) MarkSucceeded(_ context.Context, paymentID, bookingID uint64, receiptURL string, capturedAt time.Time) error {
	f.succeeded++
	return nil
}

func (f *settlementFake) MarkFailed(_ context.Context, paymentID, bookingID uint64, code, msg string) error {
	f.failed = append(f.failed, code)
	return nil
}

func testPayment() *model.Payment {
	return &model.Payment{
		ID: 5, BookingID: 42, Provider: model.ProviderStripe,
		Amount: 12345, Currency: "EUR", Status: model.PaymentRequiresMethod,
	}
}

func eventPayload(typ string) []byte {
	return []byte(fmt.Sprintf(`{
		"type": %q,
		"data": {
			"provider_payment_id": "pi_123",
			"receipt_url": "https://receipts.example/1",
			"error_code": "card_declined",
			"error_message": "insufficient funds",
			"metadata": {"booking_id": "42", "payment_id": "5"}
		}
	}`, typ))
}

func newSettlement(f *settlementFake, at time.Time, notify func(context.Context, queue.BookingConfirmedEvent)) *SettlementService {
	svc := NewSettlementService(f, testSecret, notify)
	svc.now = func() time.Time { return at }
	return svc
}

func TestVerifySignature(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"type":"payment.succeeded"}`)

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, VerifySignature(payload, sign(payload, testSecret, now), testSecret, now))
	})

	t.Run("wrong secret", func(t *testing.T) {
		err := VerifySignature(payload, sign(payload, "other", now), testSecret, now)
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		header := sign(payload, testSecret, now)
		err := VerifySignature([]byte(`{"type":"payment.failed"}`), header, testSecret, now)
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		header := sign(payload, testSecret, now.Add(-6*time.Minute))
		err := VerifySignature(payload, header, testSecret, now)
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("future timestamp", func(t *testing.T) {
		header := sign(payload, testSecret, now.Add(6*time.Minute))
		err := VerifySignature(payload, header, testSecret, now)
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("clock skew within tolerance", func(t *testing.T) {
		header := sign(payload, testSecret, now.Add(-2*time.Minute))
		assert.NoError(t, VerifySignature(payload, header, testSecret, now))
	})

	t.Run("malformed header", func(t *testing.T) {
		for _, h := range []string{"", "garbage", "t=notanumber,v1=00", "v1=00", "t=123"} {
			assert.ErrorIs(t, VerifySignature(payload, h, testSecret, now), ErrBadSignature, h)
		}
	})

	t.Run("second v1 entry matches after rotation", func(t *testing.T) {
		header := fmt.Sprintf("%s,v1=%s", sign(payload, testSecret, now), hex.EncodeToString(make([]byte, 32)))
		assert.NoError(t, VerifySignature(payload, header, testSecret, now))
	})
}

func TestHandleNotificationLifecycle(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("bad signature mutates nothing", func(t *testing.T) {
		f := &settlementFake{payment: testPayment()}
		svc := newSettlement(f, now, nil)
		payload := eventPayload(EventPaymentSucceeded)
		err := svc.HandleNotification(ctx, payload, "t=1,v1=00")
		assert.ErrorIs(t, err, ErrBadSignature)
		assert.Zero(t, f.succeeded)
	})

	t.Run("checkout completed records the provider reference", func(t *testing.T) {
		f := &settlementFake{payment: testPayment()}
		svc := newSettlement(f, now, nil)
		payload := eventPayload(EventCheckoutCompleted)
		require.NoError(t, svc.HandleNotification(ctx, payload, sign(payload, testSecret, now)))
		assert.Equal(t, []string{"pi_123"}, f.completed)
	})

	t.Run("success settles and notifies", func(t *testing.T) {
		f := &settlementFake{payment: testPayment()}
		var events []queue.BookingConfirmedEvent
		svc := newSettlement(f, now, func(_ context.Context, ev queue.BookingConfirmedEvent) {
			events = append(events, ev)
		})
		payload := eventPayload(EventPaymentSucceeded)
		require.NoError(t, svc.HandleNotification(ctx, payload, sign(payload, testSecret, now)))
		assert.Equal(t, 1, f.succeeded)
		require.Len(t, events, 1)
		assert.Equal(t, uint64(42), events[0].BookingID)
		assert.Equal(t, "STRIPE", events[0].Provider)
		assert.Equal(t, int64(12345), events[0].AmountMinorUnits)
	})

	t.Run("redelivery is idempotent", func(t *testing.T) {
		f := &settlementFake{payment: testPayment()}
		svc := newSettlement(f, now, nil)
		payload := eventPayload(EventPaymentSucceeded)
		header := sign(payload, testSecret, now)
		for i := 0; i < 3; i++ {
			require.NoError(t, svc.HandleNotification(ctx, payload, header))
		}
		// Each delivery re-runs the same unconditional field set; the
		// outcome is one settled payment regardless of the count.
		assert.Equal(t, 3, f.succeeded)
	})

	t.Run("failure records the provider error", func(t *testing.T) {
		f := &settlementFake{payment: testPayment()}
		svc := newSettlement(f, now, nil)
		payload := eventPayload(EventPaymentFailed)
		require.NoError(t, svc.HandleNotification(ctx, payload, sign(payload, testSecret, now)))
		assert.Equal(t, []string{"card_declined"}, f.failed)
	})

	t.Run("unknown event type is acknowledged", func(t *testing.T) {
		f := &settlementFake{payment: testPayment()}
		svc := newSettlement(f, now, nil)
		payload := eventPayload("charge.updated")
		assert.NoError(t, svc.HandleNotification(ctx, payload, sign(payload, testSecret, now)))
		assert.Zero(t, f.succeeded)
	})

	t.Run("unknown payment is acknowledged", func(t *testing.T) {
		f := &settlementFake{} // no payment on file
		svc := newSettlement(f, now, nil)
		payload := eventPayload(EventPaymentSucceeded)
		assert.NoError(t, svc.HandleNotification(ctx, payload, sign(payload, testSecret, now)))
	})

	t.Run("missing metadata is acknowledged", func(t *testing.T) {
		f := &settlementFake{payment: testPayment()}
		svc := newSettlement(f, now, nil)
		payload := []byte(`{"type":"payment.succeeded","data":{"metadata":{}}}`)
		assert.NoError(t, svc.HandleNotification(ctx, payload, sign(payload, testSecret, now)))
		assert.Zero(t, f.succeeded)
	})

	t.Run("mismatched booking is acknowledged", func(t *testing.T) {
		p := testPayment()
		p.BookingID = 99
		f := &settlementFake{payment: p}
		svc := newSettlement(f, now, nil)
		payload := eventPayload(EventPaymentSucceeded)
		assert.NoError(t, svc.HandleNotification(ctx, payload, sign(payload, testSecret, now)))
		assert.Zero(t, f.succeeded)
	})
}
