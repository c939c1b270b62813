package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roamly/experience-booking/internal/model"
	"github.com/roamly/experience-booking/internal/repository"
)

// Coupon rejection reasons, checked in a fixed order so a code that
// fails several rules always reports the same one.
var (
	ErrCouponNotYetValid    = errors.New("coupon is not valid yet")
	ErrCouponExpired        = errors.New("coupon has expired")
	ErrCouponExhausted      = errors.New("coupon has no uses left")
	ErrCouponAlreadyUsed    = errors.New("coupon already used by this account")
	ErrCouponScopeMismatch  = errors.New("coupon does not apply here")
	ErrCouponSelfRedemption = errors.New("coupon cannot be redeemed by its creator")
	ErrCouponAlreadyApplied = errors.New("booking already has a coupon applied")
)

// maxDuplicateProbes bounds the -COPY suffix search when duplicating
// a coupon code.
const maxDuplicateProbes = 25

// CouponStore is the persistence surface of the coupon engine.  Apply
// and Remove each bundle the price update, the usage row and the
// counter adjustment into one transaction, so usedCount always equals
// the number of usage rows.
type CouponStore interface {
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)
	GetByID(ctx context.Context, id uint64) (*model.Coupon, error)
	UsageExists(ctx context.Context, couponID, userID uint64) (bool, error)
	UsageByBooking(ctx context.Context, bookingID uint64) (*model.CouponUsage, error)
	Apply(ctx context.Context, usage *model.CouponUsage, newPrice float64) error
	Remove(ctx context.Context, usage *model.CouponUsage) error
	Create(ctx context.Context, c *model.Coupon) error
	CodeExists(ctx context.Context, code string) (bool, error)
}

// BookingContextReader loads the pricing context of a booking.
type BookingContextReader interface {
	Context(ctx context.Context, bookingID uint64) (*repository.BookingContext, error)
}

// Quote is the outcome of validating a coupon against an amount.
type Quote struct {
	CouponID       uint64
	DiscountAmount float64
	FinalPrice     float64
}

// CouponService validates, applies, removes and duplicates one-time
// scoped coupon codes.
type CouponService struct {
	store    CouponStore
	bookings BookingContextReader
	now      func() time.Time
}

// NewCouponService constructs a CouponService using the real clock.
func NewCouponService(store CouponStore, bookings BookingContextReader) *CouponService {
	return &CouponService{store: store, bookings: bookings, now: time.Now}
}

// Validate checks a code against the full rule chain for the given
// redemption target and returns a discount quote.  Rules run in a
// fixed order: existence, validity window, exhaustion, per-account
// reuse, scope, self-redemption.
func (s *CouponService) Validate(ctx context.Context, code string, experienceID, sessionID, requesterID uint64, amount float64) (*Quote, error) {
	c, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return nil, ErrCouponNotYetValid
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return nil, ErrCouponExpired
	}
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return nil, ErrCouponExhausted
	}
	used, err := s.store.UsageExists(ctx, c.ID, requesterID)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, ErrCouponAlreadyUsed
	}
	if c.ExperienceID != nil && *c.ExperienceID != experienceID {
		return nil, ErrCouponScopeMismatch
	}
	if c.SessionID != nil && *c.SessionID != sessionID {
		return nil, ErrCouponScopeMismatch
	}
	if c.CreatedByID == requesterID {
		return nil, ErrCouponSelfRedemption
	}

	discount := ComputeDiscount(amount, c.DiscountPercentage, c.MaxReductionAmount)
	return &Quote{CouponID: c.ID, DiscountAmount: discount, FinalPrice: amount - discount}, nil
}

// ComputeDiscount returns the reduction a percentage coupon grants on
// amount, floored to whole currency units and clamped to the coupon's
// cap when one is set.  It never exceeds amount.
func ComputeDiscount(amount float64, percentage int, maxReduction *float64) float64 {
	if amount <= 0 || percentage <= 0 {
		return 0
	}
	discount := math.Floor(amount * float64(percentage) / 100)
	if maxReduction != nil && discount > *maxReduction {
		discount = *maxReduction
	}
	if discount > amount {
		discount = amount
	}
	return discount
}

// Apply redeems a code against a booking: it snapshots the booking's
// current price, lowers the price, records the usage and bumps the
// counter, all in one transaction.  A booking carries at most one
// coupon; a second apply fails before touching storage, and a raced
// duplicate is caught by the unique usage key.
func (s *CouponService) Apply(ctx context.Context, bookingID uint64, code string, requesterID uint64) (newPrice float64, err error) {
	if _, err := s.store.UsageByBooking(ctx, bookingID); err == nil {
		return 0, ErrCouponAlreadyApplied
	} else if !errors.Is(err, repository.ErrUsageNotFound) {
		return 0, err
	}

	bc, err := s.bookings.Context(ctx, bookingID)
	if err != nil {
		return 0, err
	}
	if bc.Status != model.BookingPending && bc.Status != model.BookingConfirmed {
		return 0, repository.ErrConflict
	}

	quote, err := s.Validate(ctx, code, bc.ExperienceID, bc.SessionID, requesterID, bc.TotalPrice)
	if err != nil {
		return 0, err
	}

	usage := &model.CouponUsage{
		CouponID:    quote.CouponID,
		BookingID:   bookingID,
		UserID:      requesterID,
		PriceBefore: bc.TotalPrice,
	}
	if err := s.store.Apply(ctx, usage, quote.FinalPrice); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return 0, ErrCouponAlreadyApplied
		}
		return 0, err
	}
	return quote.FinalPrice, nil
}

// Remove detaches the coupon from a booking, restoring the exact
// price recorded when it was applied and releasing the use, in one
// transaction.
func (s *CouponService) Remove(ctx context.Context, bookingID uint64) (restoredPrice float64, err error) {
	usage, err := s.store.UsageByBooking(ctx, bookingID)
	if err != nil {
		return 0, err
	}
	if err := s.store.Remove(ctx, usage); err != nil {
		return 0, err
	}
	return usage.PriceBefore, nil
}

// Duplicate clones a coupon for a new owner under a derived code:
// first CODE-COPY, then CODE-COPY-1, CODE-COPY-2 and so on until a
// free code is found.  The clone starts with a fresh use counter.
func (s *CouponService) Duplicate(ctx context.Context, couponID, ownerID uint64) (*model.Coupon, error) {
	src, err := s.store.GetByID(ctx, couponID)
	if err != nil {
		return nil, err
	}

	for i := 0; i < maxDuplicateProbes; i++ {
		code := src.Code + "-COPY"
		if i > 0 {
			code = fmt.Sprintf("%s-COPY-%d", src.Code, i)
		}
		taken, err := s.store.CodeExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}

		clone := &model.Coupon{
			Code:               code,
			DiscountPercentage: src.DiscountPercentage,
			MaxReductionAmount: src.MaxReductionAmount,
			MaxUses:            src.MaxUses,
			ValidFrom:          src.ValidFrom,
			ExpiresAt:          src.ExpiresAt,
			Type:               src.Type,
			ExperienceID:       src.ExperienceID,
			SessionID:          src.SessionID,
			CreatedByID:        ownerID,
		}
		if err := s.store.Create(ctx, clone); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				// Lost a race for this suffix; probe the next one.
				continue
			}
			return nil, err
		}
		return clone, nil
	}
	return nil, repository.ErrDuplicate
}
