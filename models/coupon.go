package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountType represents how a coupon's discount_value is interpreted.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountTypePercentage || t == DiscountTypeFixed
}

// Coupon represents a discount coupon stored in Postgres.
type Coupon struct {
	ID            uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code          string              `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`
	Description   string              `gorm:"type:text" json:"description,omitempty"`
	DiscountType  DiscountType        `gorm:"type:varchar(20);not null" json:"discount_type"`
	DiscountValue decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"discount_value"`
	MinAmount     decimal.Decimal     `gorm:"type:numeric(12,2);not null;default:0" json:"min_amount"`
	MaxDiscount   decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"max_discount"` // percentage coupons only
	UsageLimit    *int                `json:"usage_limit"`                             // nil = unlimited
	UsedCount     int                 `gorm:"not null;default:0" json:"used_count"`
	ValidFrom     time.Time           `gorm:"not null" json:"valid_from"`
	ValidUntil    *time.Time          `json:"valid_until"`
	IsActive      bool                `gorm:"not null;default:true" json:"is_active"`
	CreatedBy     uuid.UUID           `gorm:"type:uuid;index" json:"created_by"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// CouponUsage records that a user applied a coupon, at most once per
// (coupon, user, course). Rows are never updated.
type CouponUsage struct {
	ID             uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CouponID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"coupon_id"`
	UserID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	CourseID       *uuid.UUID      `gorm:"type:uuid" json:"course_id,omitempty"`
	EnrollmentID   *uuid.UUID      `gorm:"type:uuid" json:"enrollment_id,omitempty"`
	OriginalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"original_amount"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"discount_amount"`
	FinalAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"final_amount"`
	UsedAt         time.Time       `gorm:"not null" json:"used_at"`
}

// CreateCouponRequest is the payload for creating a new coupon.
type CreateCouponRequest struct {
	Code          string              `json:"code" binding:"required,min=3,max=64,couponcode"`
	Description   string              `json:"description" binding:"max=500"`
	DiscountType  DiscountType        `json:"discount_type" binding:"required,oneof=percentage fixed"`
	DiscountValue decimal.Decimal     `json:"discount_value"`
	MinAmount     decimal.Decimal     `json:"min_amount"`
	MaxDiscount   decimal.NullDecimal `json:"max_discount"`
	UsageLimit    *int                `json:"usage_limit" binding:"omitempty,gte=1"`
	ValidFrom     *time.Time          `json:"valid_from"`
	ValidUntil    *time.Time          `json:"valid_until"`
	IsActive      *bool               `json:"is_active"`
}

// UpdateCouponRequest carries the fields an administrator may change; nil
// fields are left untouched.
type UpdateCouponRequest struct {
	Code          *string              `json:"code" binding:"omitempty,min=3,max=64,couponcode"`
	Description   *string              `json:"description" binding:"omitempty,max=500"`
	DiscountType  *DiscountType        `json:"discount_type" binding:"omitempty,oneof=percentage fixed"`
	DiscountValue *decimal.Decimal     `json:"discount_value"`
	MinAmount     *decimal.Decimal     `json:"min_amount"`
	MaxDiscount   *decimal.NullDecimal `json:"max_discount"`
	UsageLimit    *int                 `json:"usage_limit" binding:"omitempty,gte=1"`
	ClearLimit    bool                 `json:"clear_usage_limit"`
	ValidFrom     *time.Time           `json:"valid_from"`
	ValidUntil    *time.Time           `json:"valid_until"`
	IsActive      *bool                `json:"is_active"`
}

// ValidateCouponRequest prices a coupon against an amount without using it.
type ValidateCouponRequest struct {
	Code   string          `json:"code" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// ValidateCouponResponse is the result of a dry-run validation.
type ValidateCouponResponse struct {
	IsValid        bool            `json:"is_valid"`
	Error          string          `json:"error,omitempty"`
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
}

// ApplyCouponRequest records a coupon usage for the calling user.
type ApplyCouponRequest struct {
	Code         string          `json:"code" binding:"required"`
	CourseID     *uuid.UUID      `json:"course_id"`
	EnrollmentID *uuid.UUID      `json:"enrollment_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// CouponApplication is the priced outcome of applying a coupon.
type CouponApplication struct {
	OriginalAmount decimal.Decimal `json:"original_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	Coupon         *Coupon         `json:"coupon"`
	UsageID        uuid.UUID       `json:"usage_id"`
}

// GenerateCodeRequest asks for a fresh unused coupon code.
type GenerateCodeRequest struct {
	Prefix string `json:"prefix" binding:"omitempty,max=16,couponcode"`
	Length int    `json:"length" binding:"omitempty,min=4,max=32"`
}

// CouponStats summarises how a coupon has been used.
type CouponStats struct {
	CouponID      uuid.UUID       `json:"coupon_id"`
	Code          string          `json:"code"`
	UsedCount     int             `json:"used_count"`
	UsageLimit    *int            `json:"usage_limit"`
	UsageRows     int64           `json:"usage_rows"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
}
