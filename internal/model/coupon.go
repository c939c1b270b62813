package model

import "time"

// CouponType is an advisory visibility marker, not an enforcement
// axis: INTERNAL codes are shown in admin tooling only, EXTERNAL
// codes are distributed to users.  Validation treats both the same.
type CouponType string

// Coupon visibility types.
const (
	CouponInternal CouponType = "INTERNAL"
	CouponExternal CouponType = "EXTERNAL"
)

// Coupon is a one-time-per-user percentage discount code, optionally
// scoped to a single experience and/or session.  UsedCount always
// equals the number of coupon_usages rows referencing the coupon; it
// is only ever changed inside the transaction that inserts or deletes
// a usage row.
//
// Fields:
//  ID                 – primary key identifier.
//  Code               – unique, upper-cased redemption code.
//  DiscountPercentage – percentage off, 1 to 100.
//  MaxReductionAmount – optional cap on the absolute discount
//                       (major units).
//  MaxUses            – optional global redemption cap.
//  UsedCount          – redemptions so far; never exceeds MaxUses.
//  ValidFrom          – optional activation time.
//  ExpiresAt          – optional expiry time.
//  Type               – INTERNAL or EXTERNAL (advisory).
//  ExperienceID       – optional experience scope.
//  SessionID          – optional session scope.
//  CreatedByID        – owner; owners can never redeem their own code.
//  CreatedAt          – creation timestamp.
//  UpdatedAt          – last update timestamp.
type Coupon struct {
	ID                 uint64     // coupons.id
	Code               string     // coupons.code (unique)
	DiscountPercentage int        // coupons.discount_percentage
	MaxReductionAmount *float64   // coupons.max_reduction_amount (nullable)
	MaxUses            *uint32    // coupons.max_uses (nullable)
	UsedCount          uint32     // coupons.used_count
	ValidFrom          *time.Time // coupons.valid_from (nullable)
	ExpiresAt          *time.Time // coupons.expires_at (nullable)
	Type               CouponType // coupons.type
	ExperienceID       *uint64    // coupons.experience_id (nullable)
	SessionID          *uint64    // coupons.session_id (nullable)
	CreatedByID        uint64     // coupons.created_by
	CreatedAt          time.Time  // coupons.created_at
	UpdatedAt          time.Time  // coupons.updated_at
}

// CouponUsage is the redemption ledger entry joining a coupon to the
// single booking it was applied to.  The unique key on BookingID
// prevents double application; the (CouponID, UserID) existence check
// enforces one redemption per user.  PriceBefore snapshots the
// booking's pre-discount price at apply time so removal can restore
// it exactly even if the underlying session price changes meanwhile.
//
// Fields:
//  ID          – primary key identifier.
//  CouponID    – coupon that was redeemed.
//  BookingID   – booking carrying the discount (unique).
//  UserID      – explorer who redeemed the coupon.
//  PriceBefore – booking total before the discount (major units).
//  CreatedAt   – creation timestamp.
type CouponUsage struct {
	ID          uint64    // coupon_usages.id
	CouponID    uint64    // coupon_usages.coupon_id
	BookingID   uint64    // coupon_usages.booking_id (unique)
	UserID      uint64    // coupon_usages.user_id
	PriceBefore float64   // coupon_usages.price_before (major units)
	CreatedAt   time.Time // coupon_usages.created_at
}
