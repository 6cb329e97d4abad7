package services

import (
	"fmt"
	"time"

	"github.com/iPranay05/Skill-Prob-sub002/apperrors"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CouponValidation is the outcome of checking a coupon against an amount.
type CouponValidation struct {
	IsValid bool
	Error   string
}

// CouponEngine prices and validates coupons. It holds no state besides the
// clock and never touches storage.
type CouponEngine struct {
	now func() time.Time
}

func NewCouponEngine() *CouponEngine {
	return &CouponEngine{now: time.Now}
}

// NewCouponEngineWithClock is used by tests that need a fixed "now".
func NewCouponEngineWithClock(now func() time.Time) *CouponEngine {
	return &CouponEngine{now: now}
}

// CalculateDiscount returns the discount coupon grants on amount, never more
// than max_discount (when set) and never more than amount.
func (e *CouponEngine) CalculateDiscount(coupon *models.Coupon, amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}

	var raw decimal.Decimal
	switch coupon.DiscountType {
	case models.DiscountTypePercentage:
		raw = amount.Mul(coupon.DiscountValue).Div(hundred)
	case models.DiscountTypeFixed:
		raw = coupon.DiscountValue
	default:
		return decimal.Zero
	}

	if coupon.MaxDiscount.Valid && raw.GreaterThan(coupon.MaxDiscount.Decimal) {
		raw = coupon.MaxDiscount.Decimal
	}
	if raw.GreaterThan(amount) {
		raw = amount
	}
	if raw.IsNegative() {
		return decimal.Zero
	}
	return raw.Round(2)
}

// ValidateCoupon runs the checks in a fixed order and reports the first
// failure: active flag, validity window, usage limit, minimum amount.
func (e *CouponEngine) ValidateCoupon(coupon *models.Coupon, amount decimal.Decimal) CouponValidation {
	if !coupon.IsActive {
		return CouponValidation{Error: apperrors.MsgCouponInactive}
	}

	now := e.now()
	if now.Before(coupon.ValidFrom) || (coupon.ValidUntil != nil && !now.Before(*coupon.ValidUntil)) {
		return CouponValidation{Error: apperrors.MsgCouponOutsideWindow}
	}

	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return CouponValidation{Error: apperrors.MsgCouponLimitExceeded}
	}

	if amount.LessThan(coupon.MinAmount) {
		return CouponValidation{Error: fmt.Sprintf("Minimum amount of %s required", coupon.MinAmount.String())}
	}

	return CouponValidation{IsValid: true}
}

// Price validates and, when valid, prices the coupon.
func (e *CouponEngine) Price(coupon *models.Coupon, amount decimal.Decimal) (*models.CouponApplication, error) {
	if v := e.ValidateCoupon(coupon, amount); !v.IsValid {
		return nil, apperrors.Validation(v.Error)
	}
	discount := e.CalculateDiscount(coupon, amount)
	return &models.CouponApplication{
		OriginalAmount: amount,
		DiscountAmount: discount,
		FinalAmount:    amount.Sub(discount),
		Coupon:         coupon,
	}, nil
}
