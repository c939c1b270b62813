package repository

import (
	"context"
	"database/sql"

	"github.com/roamly/experience-booking/internal/model"
)

// RefundRepo provides persistence for the append-only refund ledger.
// Rows are only ever inserted; refund completion is reconciled by a
// later provider notification, not modeled here.
type RefundRepo struct {
	db *sql.DB
}

// NewRefundRepo returns a new RefundRepo bound to the given database.
func NewRefundRepo(db *sql.DB) *RefundRepo { return &RefundRepo{db: db} }

// Create appends a refund entry and populates the generated ID.
func (r *RefundRepo) Create(ctx context.Context, ref *model.Refund) error {
	const q = `INSERT INTO refunds (payment_id, amount, reason, status, provider_refund_id)
			   VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, ref.PaymentID, ref.Amount, ref.Reason, string(ref.Status), ref.ProviderRefundID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ref.ID = uint64(id)
	return nil
}

// ListByPayment returns all refunds recorded against a payment,
// oldest first.
func (r *RefundRepo) ListByPayment(ctx context.Context, paymentID uint64) ([]model.Refund, error) {
	const q = `SELECT id, payment_id, amount, reason, status, provider_refund_id, created_at
			   FROM refunds WHERE payment_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Refund, 0)
	for rows.Next() {
		var ref model.Refund
		var reason, providerRef sql.NullString
		if err := rows.Scan(&ref.ID, &ref.PaymentID, &ref.Amount, &reason, &ref.Status, &providerRef, &ref.CreatedAt); err != nil {
			return nil, err
		}
		if reason.Valid {
			v := reason.String
			ref.Reason = &v
		}
		if providerRef.Valid {
			v := providerRef.String
			ref.ProviderRefundID = &v
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
