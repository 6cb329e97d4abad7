package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/apperrors"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerCoupon(h *harness, limit *int) *models.Coupon {
	return h.store.addCoupon(&models.Coupon{
		Code:          "LAUNCH",
		DiscountType:  models.DiscountTypePercentage,
		DiscountValue: dec(25),
		UsageLimit:    limit,
		ValidFrom:     fixedNow.Add(-time.Hour),
		IsActive:      true,
	})
}

func TestApplyCoupon_SecondApplicationRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ledgerCoupon(h, nil)
	userID, courseID := uuid.New(), uuid.New()

	app, err := h.ledger.ApplyCoupon(ctx, "launch", userID, &courseID, dec(400), nil)
	require.NoError(t, err)
	assert.True(t, app.DiscountAmount.Equal(dec(100)))
	assert.True(t, app.FinalAmount.Equal(dec(300)))
	assert.Equal(t, 1, h.store.couponByCode("LAUNCH").UsedCount)

	_, err = h.ledger.ApplyCoupon(ctx, "LAUNCH", userID, &courseID, dec(400), nil)
	assert.ErrorIs(t, err, apperrors.ErrCouponAlreadyUsed)
	assert.Equal(t, "Coupon already used for this course", apperrors.From(err).Message)
	assert.Equal(t, 1, h.store.couponByCode("LAUNCH").UsedCount)
	assert.Equal(t, 1, h.store.usageCount())

	assert.Equal(t, 1, h.pub.count(models.EventCouponApplied))
}

func TestApplyCoupon_SameUserOtherCourse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ledgerCoupon(h, nil)
	userID := uuid.New()
	first, second := uuid.New(), uuid.New()

	_, err := h.ledger.ApplyCoupon(ctx, "LAUNCH", userID, &first, dec(100), nil)
	require.NoError(t, err)
	_, err = h.ledger.ApplyCoupon(ctx, "LAUNCH", userID, &second, dec(100), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, h.store.couponByCode("LAUNCH").UsedCount)
}

func TestApplyCoupon_ConcurrentUsersRespectLimit(t *testing.T) {
	const limit, users = 3, 20

	h := newHarness(t)
	ledgerCoupon(h, intPtr(limit))
	courseID := uuid.New()

	var mu sync.Mutex
	var ok, exhausted int
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.ledger.ApplyCoupon(context.Background(), "LAUNCH", uuid.New(), &courseID, dec(100), nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case apperrors.From(err).Message == apperrors.MsgCouponLimitExceeded:
				exhausted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, ok)
	assert.Equal(t, users-limit, exhausted)
	assert.Equal(t, limit, h.store.couponByCode("LAUNCH").UsedCount)
}

func TestApplyCoupon_RetriesConflicts(t *testing.T) {
	h := newHarness(t)
	ledgerCoupon(h, nil)
	h.store.recordConflicts = 2
	courseID := uuid.New()

	_, err := h.ledger.ApplyCoupon(context.Background(), "LAUNCH", uuid.New(), &courseID, dec(100), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, h.store.usageCount())
}

func TestApplyCoupon_InvalidCoupons(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.addCoupon(&models.Coupon{
		Code:          "OFF",
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: dec(10),
		ValidFrom:     fixedNow.Add(-time.Hour),
	})
	courseID := uuid.New()

	_, err := h.ledger.ApplyCoupon(ctx, "OFF", uuid.New(), &courseID, dec(100), nil)
	assert.Equal(t, apperrors.MsgCouponInactive, apperrors.From(err).Message)

	_, err = h.ledger.ApplyCoupon(ctx, "NOPE", uuid.New(), &courseID, dec(100), nil)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	_, err = h.ledger.ApplyCoupon(ctx, "OFF", uuid.New(), &courseID, dec(-1), nil)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	assert.Equal(t, 0, h.store.usageCount())
}
