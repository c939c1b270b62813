package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/roamly/experience-booking/internal/model"
)

// PaymentRepo provides persistence for payments and the settlement
// transitions on them.  Settlement writes are unconditional field
// sets bundled with the matching booking update in one transaction,
// which makes redelivery of the same provider notification a no-op.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// DB exposes the underlying sql.DB for cross-repository transactions.
func (r *PaymentRepo) DB() *sql.DB { return r.db }

// Create inserts a new payment row and populates the generated ID.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	const q = `INSERT INTO payments (booking_id, provider, provider_payment_id, amount, currency, status)
			   VALUES (?, ?, ?, ?, ?, ?)`
	var ref interface{}
	if p.ProviderPaymentID != nil {
		ref = *p.ProviderPaymentID
	}
	res, err := r.db.ExecContext(ctx, q, p.BookingID, string(p.Provider), ref, p.Amount, p.Currency, string(p.Status))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// GetByID returns a single payment or ErrPaymentNotFound.
func (r *PaymentRepo) GetByID(ctx context.Context, id uint64) (*model.Payment, error) {
	const q = `SELECT id, booking_id, provider, provider_payment_id, amount, currency, status,
					  error_code, error_message, receipt_url, captured_at, refunded_at, refunded_amount,
					  created_at, updated_at
			   FROM payments WHERE id = ?`
	var p model.Payment
	var ref, errCode, errMsg, receipt sql.NullString
	var capturedAt, refundedAt sql.NullTime
	var refundedAmount sql.NullInt64
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&p.ID, &p.BookingID, &p.Provider, &ref, &p.Amount, &p.Currency, &p.Status,
		&errCode, &errMsg, &receipt, &capturedAt, &refundedAt, &refundedAmount,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	if ref.Valid {
		v := ref.String
		p.ProviderPaymentID = &v
	}
	if errCode.Valid {
		v := errCode.String
		p.ErrorCode = &v
	}
	if errMsg.Valid {
		v := errMsg.String
		p.ErrorMessage = &v
	}
	if receipt.Valid {
		v := receipt.String
		p.ReceiptURL = &v
	}
	if capturedAt.Valid {
		t := capturedAt.Time
		p.CapturedAt = &t
	}
	if refundedAt.Valid {
		t := refundedAt.Time
		p.RefundedAt = &t
	}
	if refundedAmount.Valid {
		v := refundedAmount.Int64
		p.RefundedAmount = &v
	}
	return &p, nil
}

// SetProviderReference records the external payment reference after a
// checkout succeeded, and corrects the recorded provider when the
// winning fallback candidate differs from the originally chosen one.
// An empty reference leaves provider_payment_id NULL (some providers
// only hand out a reference in the first webhook).
func (r *PaymentRepo) SetProviderReference(ctx context.Context, paymentID uint64, provider model.PaymentProvider, providerPaymentID string) error {
	const q = `UPDATE payments SET provider = ?, provider_payment_id = NULLIF(?, '') WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, string(provider), providerPaymentID, paymentID)
	return err
}

// ConfirmCash finalizes the cash pseudo-provider path: the payment is
// already in PROCESSING and the booking is confirmed immediately with
// the hold expiry cleared, since staff settle cash out-of-band.
func (r *PaymentRepo) ConfirmCash(ctx context.Context, bookingID, paymentID uint64) error {
	const q = `UPDATE bookings SET status = 'CONFIRMED', payment_id = ?, payment_status = ?, expires_at = NULL
			   WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, paymentID, string(model.PaymentProcessing), bookingID)
	return err
}

// MarkCheckoutCompleted moves a payment to PROCESSING and records the
// external reference.  Idempotent: replaying the same notification
// sets the same values again.
func (r *PaymentRepo) MarkCheckoutCompleted(ctx context.Context, paymentID uint64, providerPaymentID string) error {
	const q = `UPDATE payments SET status = ?, provider_payment_id = COALESCE(NULLIF(?, ''), provider_payment_id)
			   WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, string(model.PaymentProcessing), providerPaymentID, paymentID)
	return err
}

// MarkSucceeded records captured funds: payment SUCCEEDED with receipt
// and capture time, booking CONFIRMED with the hold expiry cleared.
// Both writes are one transaction and idempotent under redelivery.
func (r *PaymentRepo) MarkSucceeded(ctx context.Context, paymentID, bookingID uint64, receiptURL string, capturedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	const payQ = `UPDATE payments SET status = ?, receipt_url = COALESCE(NULLIF(?, ''), receipt_url), captured_at = ?
				  WHERE id = ?`
	if _, err := tx.ExecContext(ctx, payQ, string(model.PaymentSucceeded), receiptURL, capturedAt.UTC(), paymentID); err != nil {
		return err
	}
	const bookQ = `UPDATE bookings SET status = 'CONFIRMED', payment_status = ?, expires_at = NULL WHERE id = ?`
	if _, err := tx.ExecContext(ctx, bookQ, string(model.PaymentSucceeded), bookingID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// MarkFailed records a failed charge: payment CANCELLED with the
// provider's error details, booking payment_status CANCELLED.  The
// booking itself stays in its current state so the explorer can retry
// checkout.  One transaction, idempotent under redelivery.
func (r *PaymentRepo) MarkFailed(ctx context.Context, paymentID, bookingID uint64, errorCode, errorMessage string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	const payQ = `UPDATE payments SET status = ?, error_code = NULLIF(?, ''), error_message = NULLIF(?, '')
				  WHERE id = ?`
	if _, err := tx.ExecContext(ctx, payQ, string(model.PaymentCancelled), errorCode, errorMessage, paymentID); err != nil {
		return err
	}
	const bookQ = `UPDATE bookings SET payment_status = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, bookQ, string(model.PaymentCancelled), bookingID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// OrganizerOf resolves the organizer who owns the experience behind a
// payment.  Used by the refund endpoint's ownership check.
func (r *PaymentRepo) OrganizerOf(ctx context.Context, paymentID uint64) (uint64, error) {
	const q = `SELECT e.organizer_id
			   FROM payments p
			   JOIN bookings b ON b.id = p.booking_id
			   JOIN sessions s ON s.id = b.session_id
			   JOIN experiences e ON e.id = s.experience_id
			   WHERE p.id = ?`
	var organizerID uint64
	err := r.db.QueryRowContext(ctx, q, paymentID).Scan(&organizerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrPaymentNotFound
	}
	if err != nil {
		return 0, err
	}
	return organizerID, nil
}
