package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roamly/experience-booking/internal/model"
	"github.com/roamly/experience-booking/internal/repository"
)

// couponFake is an in-memory CouponStore plus BookingContextReader.
type couponFake struct {
	coupons  map[string]*model.Coupon // keyed by normalized code
	byID     map[uint64]*model.Coupon
	usages   map[uint64]*model.CouponUsage // keyed by booking id
	contexts map[uint64]*repository.BookingContext
	nextID   uint64
	prices   map[uint64]float64 // booking id -> current total
}

func newCouponFake() *couponFake {
	return &couponFake{
		coupons:  make(map[string]*model.Coupon),
		byID:     make(map[uint64]*model.Coupon),
		usages:   make(map[uint64]*model.CouponUsage),
		contexts: make(map[uint64]*repository.BookingContext),
		prices:   make(map[uint64]float64),
	}
}

func (f *couponFake) addCoupon(c *model.Coupon) *model.Coupon {
	f.nextID++
	c.ID = f.nextID
	f.coupons[repository.NormalizeCode(c.Code)] = c
	f.byID[c.ID] = c
	return c
}

func (f *couponFake) addBooking(bc *repository.BookingContext) {
	f.contexts[bc.BookingID] = bc
	f.prices[bc.BookingID] = bc.TotalPrice
}

func (f *couponFake) GetByCode(_ context.Context, code string) (*model.Coupon, error) {
	c, ok := f.coupons[repository.NormalizeCode(code)]
	if !ok {
		return nil, repository.ErrCouponNotFound
	}
	return c, nil
}

func (f *couponFake) GetByID(_ context.Context, id uint64) (*model.Coupon, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrCouponNotFound
	}
	return c, nil
}

func (f *couponFake) UsageExists(_ context.Context, couponID, userID uint64) (bool, error) {
	for _, u := range f.usages {
		if u.CouponID == couponID && u.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *couponFake) UsageByBooking(_ context.Context, bookingID uint64) (*model.CouponUsage, error) {
	u, ok := f.usages[bookingID]
	if !ok {
		return nil, repository.ErrUsageNotFound
	}
	return u, nil
}

func (f *couponFake) Apply(_ context.Context, usage *model.CouponUsage, newPrice float64) error {
	if _, taken := f.usages[usage.BookingID]; taken {
		return repository.ErrDuplicate
	}
	f.nextID++
	usage.ID = f.nextID
	f.usages[usage.BookingID] = usage
	f.prices[usage.BookingID] = newPrice
	f.byID[usage.CouponID].UsedCount++
	return nil
}

func (f *couponFake) Remove(_ context.Context, usage *model.CouponUsage) error {
	stored, ok := f.usages[usage.BookingID]
	if !ok || stored.ID != usage.ID {
		return repository.ErrUsageNotFound
	}
	delete(f.usages, usage.BookingID)
	f.prices[usage.BookingID] = usage.PriceBefore
	f.byID[usage.CouponID].UsedCount--
	return nil
}

func (f *couponFake) Create(_ context.Context, c *model.Coupon) error {
	if _, taken := f.coupons[repository.NormalizeCode(c.Code)]; taken {
		return repository.ErrDuplicate
	}
	f.addCoupon(c)
	return nil
}

func (f *couponFake) CodeExists(_ context.Context, code string) (bool, error) {
	_, ok := f.coupons[repository.NormalizeCode(code)]
	return ok, nil
}

func (f *couponFake) Context(_ context.Context, bookingID uint64) (*repository.BookingContext, error) {
	bc, ok := f.contexts[bookingID]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	out := *bc
	out.TotalPrice = f.prices[bookingID]
	return &out, nil
}

func newCouponService(f *couponFake, at time.Time) *CouponService {
	svc := NewCouponService(f, f)
	svc.now = func() time.Time { return at }
	return svc
}

func ptrF(v float64) *float64   { return &v }
func ptrU32(v uint32) *uint32   { return &v }
func ptrU64(v uint64) *uint64   { return &v }
func ptrTime(v time.Time) *time.Time { return &v }

func TestComputeDiscount(t *testing.T) {
	cases := []struct {
		name   string
		amount float64
		pct    int
		cap    *float64
		want   float64
	}{
		{"plain percentage", 200, 10, nil, 20},
		{"floored to whole units", 105, 10, nil, 10},
		{"cap clamps", 1000, 10, ptrF(5), 5},
		{"cap above discount is inert", 1000, 10, ptrF(500), 100},
		{"never exceeds amount", 3, 100, nil, 3},
		{"zero amount", 0, 50, nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ComputeDiscount(tc.amount, tc.pct, tc.cap))
		})
	}
}

func TestValidateRejectionOrder(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("unknown code", func(t *testing.T) {
		svc := newCouponService(newCouponFake(), now)
		_, err := svc.Validate(ctx, "NOPE", 1, 1, 2, 100)
		assert.ErrorIs(t, err, repository.ErrCouponNotFound)
	})

	t.Run("not yet valid", func(t *testing.T) {
		f := newCouponFake()
		f.addCoupon(&model.Coupon{Code: "SOON", DiscountPercentage: 10, CreatedByID: 1,
			ValidFrom: ptrTime(now.Add(time.Hour))})
		_, err := newCouponService(f, now).Validate(ctx, "SOON", 1, 1, 2, 100)
		assert.ErrorIs(t, err, ErrCouponNotYetValid)
	})

	t.Run("expired", func(t *testing.T) {
		f := newCouponFake()
		f.addCoupon(&model.Coupon{Code: "OLD", DiscountPercentage: 10, CreatedByID: 1,
			ExpiresAt: ptrTime(now.Add(-time.Hour))})
		_, err := newCouponService(f, now).Validate(ctx, "OLD", 1, 1, 2, 100)
		assert.ErrorIs(t, err, ErrCouponExpired)
	})

	t.Run("exhausted", func(t *testing.T) {
		f := newCouponFake()
		f.addCoupon(&model.Coupon{Code: "GONE", DiscountPercentage: 10, CreatedByID: 1,
			MaxUses: ptrU32(3), UsedCount: 3})
		_, err := newCouponService(f, now).Validate(ctx, "GONE", 1, 1, 2, 100)
		assert.ErrorIs(t, err, ErrCouponExhausted)
	})

	t.Run("scope mismatch", func(t *testing.T) {
		f := newCouponFake()
		f.addCoupon(&model.Coupon{Code: "SCOPED", DiscountPercentage: 10, CreatedByID: 1,
			ExperienceID: ptrU64(9)})
		_, err := newCouponService(f, now).Validate(ctx, "SCOPED", 1, 1, 2, 100)
		assert.ErrorIs(t, err, ErrCouponScopeMismatch)
	})

	t.Run("self redemption", func(t *testing.T) {
		f := newCouponFake()
		f.addCoupon(&model.Coupon{Code: "MINE", DiscountPercentage: 10, CreatedByID: 2})
		_, err := newCouponService(f, now).Validate(ctx, "MINE", 1, 1, 2, 100)
		assert.ErrorIs(t, err, ErrCouponSelfRedemption)
	})

	t.Run("code lookup is case and whitespace insensitive", func(t *testing.T) {
		f := newCouponFake()
		f.addCoupon(&model.Coupon{Code: "SAVE10", DiscountPercentage: 10, CreatedByID: 1})
		q, err := newCouponService(f, now).Validate(ctx, "  save10 ", 1, 1, 2, 100)
		require.NoError(t, err)
		assert.Equal(t, float64(10), q.DiscountAmount)
	})
}

func TestApplyAndRemoveRestoresSnapshot(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	f := newCouponFake()
	f.addCoupon(&model.Coupon{Code: "SAVE10", DiscountPercentage: 10,
		MaxReductionAmount: ptrF(5), CreatedByID: 1})
	f.addBooking(&repository.BookingContext{
		BookingID: 42, SessionID: 1, ExperienceID: 1, ExplorerID: 2,
		TotalPrice: 1000, Status: model.BookingPending,
	})
	svc := newCouponService(f, now)

	newPrice, err := svc.Apply(ctx, 42, "SAVE10", 2)
	require.NoError(t, err)
	assert.Equal(t, float64(995), newPrice)
	assert.Equal(t, uint32(1), f.byID[1].UsedCount)

	// A second coupon on the same booking is rejected up front.
	_, err = svc.Apply(ctx, 42, "SAVE10", 2)
	assert.ErrorIs(t, err, ErrCouponAlreadyApplied)

	restored, err := svc.Remove(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, float64(1000), restored)
	assert.Equal(t, uint32(0), f.byID[1].UsedCount, "counter must match the usage rows")

	// Removal released the use, so the same account can redeem again.
	_, err = svc.Apply(ctx, 42, "SAVE10", 2)
	assert.NoError(t, err)
}

func TestApplyOncePerAccount(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	f := newCouponFake()
	f.addCoupon(&model.Coupon{Code: "SAVE10", DiscountPercentage: 10, CreatedByID: 1})
	f.addBooking(&repository.BookingContext{
		BookingID: 42, SessionID: 1, ExperienceID: 1, ExplorerID: 2,
		TotalPrice: 100, Status: model.BookingPending,
	})
	f.addBooking(&repository.BookingContext{
		BookingID: 43, SessionID: 1, ExperienceID: 1, ExplorerID: 2,
		TotalPrice: 100, Status: model.BookingPending,
	})
	svc := newCouponService(f, now)

	_, err := svc.Apply(ctx, 42, "SAVE10", 2)
	require.NoError(t, err)

	_, err = svc.Apply(ctx, 43, "SAVE10", 2)
	assert.ErrorIs(t, err, ErrCouponAlreadyUsed)
}

func TestDuplicateProbesSuffixes(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	f := newCouponFake()
	src := f.addCoupon(&model.Coupon{Code: "SAVE10", DiscountPercentage: 10,
		MaxUses: ptrU32(50), UsedCount: 17, CreatedByID: 1})
	f.addCoupon(&model.Coupon{Code: "SAVE10-COPY", DiscountPercentage: 10, CreatedByID: 1})
	f.addCoupon(&model.Coupon{Code: "SAVE10-COPY-1", DiscountPercentage: 10, CreatedByID: 1})
	svc := newCouponService(f, now)

	clone, err := svc.Duplicate(ctx, src.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, "SAVE10-COPY-2", clone.Code)
	assert.Equal(t, uint64(9), clone.CreatedByID)
	assert.Equal(t, uint32(0), clone.UsedCount, "clone starts with a fresh counter")
	require.NotNil(t, clone.MaxUses)
	assert.Equal(t, uint32(50), *clone.MaxUses)
}
