package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/roamly/experience-booking/internal/model"
)

// CouponRepo provides persistence for coupons and their redemption
// ledger.  Apply and Remove bundle the booking price change, the
// usage row and the used_count adjustment into one transaction, so
// used_count always equals the number of usage rows.  The unique key
// on coupon_usages.booking_id is the backstop for concurrent applies.
type CouponRepo struct {
	db *sql.DB
}

// NewCouponRepo returns a new CouponRepo bound to the given database.
func NewCouponRepo(db *sql.DB) *CouponRepo { return &CouponRepo{db: db} }

// DB exposes the underlying sql.DB for cross-repository transactions.
func (r *CouponRepo) DB() *sql.DB { return r.db }

const couponSelect = `SELECT id, code, discount_percentage, max_reduction_amount, max_uses, used_count,
	   valid_from, expires_at, type, experience_id, session_id, created_by, created_at, updated_at
	   FROM coupons`

// GetByCode looks a coupon up by its case-normalized code.
func (r *CouponRepo) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	return scanCoupon(r.db.QueryRowContext(ctx, couponSelect+` WHERE code = ?`, NormalizeCode(code)))
}

// GetByID returns a single coupon or ErrCouponNotFound.
func (r *CouponRepo) GetByID(ctx context.Context, id uint64) (*model.Coupon, error) {
	return scanCoupon(r.db.QueryRowContext(ctx, couponSelect+` WHERE id = ?`, id))
}

// UsageExists reports whether the user already redeemed the coupon on
// any booking (one redemption per user per coupon).
func (r *CouponRepo) UsageExists(ctx context.Context, couponID, userID uint64) (bool, error) {
	const q = `SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = ? AND user_id = ?`
	var n int
	if err := r.db.QueryRowContext(ctx, q, couponID, userID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// UsageByBooking returns the usage row carried by a booking, or
// ErrUsageNotFound when the booking has no coupon applied.
func (r *CouponRepo) UsageByBooking(ctx context.Context, bookingID uint64) (*model.CouponUsage, error) {
	const q = `SELECT id, coupon_id, booking_id, user_id, price_before, created_at
			   FROM coupon_usages WHERE booking_id = ?`
	var u model.CouponUsage
	err := r.db.QueryRowContext(ctx, q, bookingID).Scan(
		&u.ID, &u.CouponID, &u.BookingID, &u.UserID, &u.PriceBefore, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUsageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Apply performs the three redemption writes as one transaction:
// booking price update, usage insert (with the pre-discount snapshot)
// and used_count increment.  A concurrent apply on the same booking
// trips the unique key on booking_id; the transaction rolls back
// leaving no partial effect and ErrDuplicate is returned.
func (r *CouponRepo) Apply(ctx context.Context, usage *model.CouponUsage, newPrice float64) error {
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
	if _, err := tx.ExecContext(ctx, `UPDATE bookings SET total_price = ? WHERE id = ?`, newPrice, usage.BookingID); err != nil {
		return err
	}
	const ins = `INSERT INTO coupon_usages (coupon_id, booking_id, user_id, price_before) VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, ins, usage.CouponID, usage.BookingID, usage.UserID, usage.PriceBefore)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	usage.ID = uint64(id)
	if _, err := tx.ExecContext(ctx, `UPDATE coupons SET used_count = used_count + 1 WHERE id = ?`, usage.CouponID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Remove reverses a redemption as one transaction: the booking price
// is restored to the snapshot taken at apply time, the usage row is
// deleted and used_count decremented.  The decrement is unconditional
// because each usage row incremented the counter exactly once.
func (r *CouponRepo) Remove(ctx context.Context, usage *model.CouponUsage) error {
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
	if _, err := tx.ExecContext(ctx, `UPDATE bookings SET total_price = ? WHERE id = ?`, usage.PriceBefore, usage.BookingID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM coupon_usages WHERE id = ?`, usage.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// A concurrent remove already won; rolling back keeps the
		// counter consistent with the surviving usage rows.
		return ErrUsageNotFound
	}
	if _, err := tx.ExecContext(ctx, `UPDATE coupons SET used_count = used_count - 1 WHERE id = ?`, usage.CouponID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Create inserts a new coupon.  A code collision surfaces as
// ErrDuplicate via the unique key on coupons.code.
func (r *CouponRepo) Create(ctx context.Context, c *model.Coupon) error {
	const q = `INSERT INTO coupons (code, discount_percentage, max_reduction_amount, max_uses, used_count,
									valid_from, expires_at, type, experience_id, session_id, created_by)
			   VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		NormalizeCode(c.Code), c.DiscountPercentage, c.MaxReductionAmount, c.MaxUses,
		c.ValidFrom, c.ExpiresAt, string(c.Type), c.ExperienceID, c.SessionID, c.CreatedByID,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	c.UsedCount = 0
	return nil
}

// CodeExists reports whether a coupon with the given code exists.
// Used by the duplicate-code probe loop; the unique key remains the
// authoritative guard against the probe-then-create race.
func (r *CouponRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	const q = `SELECT COUNT(*) FROM coupons WHERE code = ?`
	var n int
	if err := r.db.QueryRowContext(ctx, q, NormalizeCode(code)).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ExperienceOrganizer resolves the organizer of an experience.  Used
// by the coupon handler to enforce that organizers only duplicate
// coupons scoped to their own experiences.
func (r *CouponRepo) ExperienceOrganizer(ctx context.Context, experienceID uint64) (uint64, error) {
	var organizerID uint64
	err := r.db.QueryRowContext(ctx, `SELECT organizer_id FROM experiences WHERE id = ?`, experienceID).Scan(&organizerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrCouponNotFound
	}
	if err != nil {
		return 0, err
	}
	return organizerID, nil
}

// NormalizeCode upper-cases and trims a redemption code; codes are
// stored and compared in this canonical form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func scanCoupon(row rowScanner) (*model.Coupon, error) {
	var c model.Coupon
	var maxReduction sql.NullFloat64
	var maxUses sql.NullInt64
	var validFrom, expiresAt sql.NullTime
	var experienceID, sessionID sql.NullInt64
	err := row.Scan(
		&c.ID, &c.Code, &c.DiscountPercentage, &maxReduction, &maxUses, &c.UsedCount,
		&validFrom, &expiresAt, &c.Type, &experienceID, &sessionID, &c.CreatedByID,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, err
	}
	if maxReduction.Valid {
		v := maxReduction.Float64
		c.MaxReductionAmount = &v
	}
	if maxUses.Valid {
		v := uint32(maxUses.Int64)
		c.MaxUses = &v
	}
	if validFrom.Valid {
		t := validFrom.Time
		c.ValidFrom = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		c.ExpiresAt = &t
	}
	if experienceID.Valid {
		v := uint64(experienceID.Int64)
		c.ExperienceID = &v
	}
	if sessionID.Valid {
		v := uint64(sessionID.Int64)
		c.SessionID = &v
	}
	return &c, nil
}
