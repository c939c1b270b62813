package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/roamly/experience-booking/internal/model"
	"github.com/roamly/experience-booking/internal/queue"
	"github.com/roamly/experience-booking/internal/repository"
)

// Normalized provider event types. Adapters at the edge map each
// provider's native event names onto these before dispatch.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventPaymentSucceeded  = "payment.succeeded"
	EventPaymentFailed     = "payment.failed"
)

// ErrBadSignature rejects a webhook whose signature header does not
// verify. The handler logs it and still acknowledges the delivery;
// retrying a forged or corrupted payload can never succeed.
var ErrBadSignature = errors.New("webhook signature verification failed")

// signatureTolerance bounds the accepted age of a signed timestamp,
// limiting replay of captured webhook payloads.
const signatureTolerance = 5 * time.Minute

// SettlementStore is the persistence surface of the settlement state
// machine. The Mark methods are unconditional field sets inside one
// transaction each, which is what makes redelivery idempotent.
type SettlementStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Payment, error)
	MarkCheckoutCompleted(ctx context.Context, paymentID uint64, providerPaymentID string) error
	MarkSucceeded(ctx context.Context, paymentID, bookingID uint64, receiptURL string, capturedAt time.Time) error
	MarkFailed(ctx context.Context, paymentID, bookingID uint64, errorCode, errorMessage string) error
}

// webhookEvent is the normalized wire form of a provider notification.
type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		ProviderPaymentID string            `json:"provider_payment_id"`
		ReceiptURL        string            `json:"receipt_url"`
		ErrorCode         string            `json:"error_code"`
		ErrorMessage      string            `json:"error_message"`
		Metadata          map[string]string `json:"metadata"`
	} `json:"data"`
}

// SettlementService applies provider webhook notifications to
// payments and their bookings. Deliveries are at-least-once and
// unordered, so every transition tolerates replay.
type SettlementService struct {
	store  SettlementStore
	secret string
	now    func() time.Time
	notify func(ctx context.Context, ev queue.BookingConfirmedEvent)
}

// NewSettlementService constructs a SettlementService. notify is
// called after a payment settles successfully; nil disables
// notifications.
func NewSettlementService(store SettlementStore, secret string, notify func(ctx context.Context, ev queue.BookingConfirmedEvent)) *SettlementService {
	return &SettlementService{store: store, secret: secret, now: time.Now, notify: notify}
}

// VerifySignature checks a "t=<unix>,v1=<hex>" signature header
// against the raw payload: the signed string is "<t>.<payload>",
// the MAC is HMAC-SHA256 under secret, and t must be within
// signatureTolerance of now. Multiple v1 entries are accepted if any
// matches, which keeps secret rotation non-breaking.
func VerifySignature(payload []byte, header, secret string, now time.Time) error {
	var ts int64
	var sigs [][]byte
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrBadSignature
			}
			ts = n
		case "v1":
			sig, err := hex.DecodeString(v)
			if err != nil {
				continue
			}
			sigs = append(sigs, sig)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return ErrBadSignature
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return ErrBadSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	want := mac.Sum(nil)
	for _, sig := range sigs {
		if hmac.Equal(sig, want) {
			return nil
		}
	}
	return ErrBadSignature
}

// HandleNotification verifies and applies one webhook delivery.
// Unknown event types and events whose metadata does not resolve to a
// known payment are acknowledged without effect; redelivering them
// forever would not make them processable. Only a bad signature or a
// storage failure is an error.
func (s *SettlementService) HandleNotification(ctx context.Context, payload []byte, sigHeader string) error {
	if err := VerifySignature(payload, sigHeader, s.secret, s.now()); err != nil {
		return err
	}

	var ev webhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		log.Printf("settlement: dropping malformed event: %v", err)
		return nil
	}

	bookingID, err1 := strconv.ParseUint(ev.Data.Metadata["booking_id"], 10, 64)
	paymentID, err2 := strconv.ParseUint(ev.Data.Metadata["payment_id"], 10, 64)
	if err1 != nil || err2 != nil {
		log.Printf("settlement: dropping %s event without correlation metadata", ev.Type)
		return nil
	}

	p, err := s.store.GetByID(ctx, paymentID)
	if errors.Is(err, repository.ErrPaymentNotFound) {
		log.Printf("settlement: dropping %s event for unknown payment %d", ev.Type, paymentID)
		return nil
	}
	if err != nil {
		return err
	}
	if p.BookingID != bookingID {
		log.Printf("settlement: dropping %s event: payment %d does not belong to booking %d", ev.Type, paymentID, bookingID)
		return nil
	}

	switch ev.Type {
	case EventCheckoutCompleted:
		return s.store.MarkCheckoutCompleted(ctx, paymentID, ev.Data.ProviderPaymentID)

	case EventPaymentSucceeded:
		capturedAt := s.now()
		if err := s.store.MarkSucceeded(ctx, paymentID, bookingID, ev.Data.ReceiptURL, capturedAt); err != nil {
			return err
		}
		if s.notify != nil {
			s.notify(ctx, queue.BookingConfirmedEvent{
				BookingID:        bookingID,
				PaymentID:        paymentID,
				Provider:         string(p.Provider),
				AmountMinorUnits: p.Amount,
				Currency:         p.Currency,
				ConfirmedAt:      capturedAt.UTC().Format(time.RFC3339),
			})
		}
		return nil

	case EventPaymentFailed:
		return s.store.MarkFailed(ctx, paymentID, bookingID, ev.Data.ErrorCode, ev.Data.ErrorMessage)

	default:
		log.Printf("settlement: ignoring unhandled event type %q", ev.Type)
		return nil
	}
}
