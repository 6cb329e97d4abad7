package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the state of a payment record.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// Payment records money owed or received for an enrollment or subscription.
type Payment struct {
	ID               uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	StudentID        uuid.UUID           `gorm:"type:uuid;not null;index" json:"student_id"`
	CourseID         *uuid.UUID          `gorm:"type:uuid;index" json:"course_id,omitempty"`
	EnrollmentID     *uuid.UUID          `gorm:"type:uuid;index" json:"enrollment_id,omitempty"`
	SubscriptionID   *uuid.UUID          `gorm:"type:uuid;index" json:"subscription_id,omitempty"`
	Amount           decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency         string              `gorm:"type:varchar(10);not null" json:"currency"`
	Status           PaymentStatus       `gorm:"type:varchar(20);not null;index" json:"status"`
	Gateway          string              `gorm:"type:varchar(50)" json:"gateway"`
	GatewayPaymentID *string             `gorm:"type:varchar(255);uniqueIndex" json:"gateway_payment_id"`
	GatewayOrderID   *string             `gorm:"type:varchar(255)" json:"gateway_order_id"`
	CouponCode       *string             `gorm:"type:varchar(64)" json:"coupon_code"`
	DiscountAmount   decimal.Decimal     `gorm:"type:numeric(12,2);not null;default:0" json:"discount_amount"`
	RefundAmount     decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"refund_amount"`
	PaymentDate      *time.Time          `json:"payment_date"`
	FailureReason    *string             `gorm:"type:text" json:"failure_reason"`
	CreatedAt        time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// CreatePaymentRequest records a payment intent.
type CreatePaymentRequest struct {
	StudentID      *uuid.UUID      `json:"student_id"`
	CourseID       *uuid.UUID      `json:"course_id"`
	EnrollmentID   *uuid.UUID      `json:"enrollment_id"`
	SubscriptionID *uuid.UUID      `json:"subscription_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency" binding:"omitempty,len=3"`
	Gateway        string          `json:"gateway" binding:"omitempty,max=50"`
	GatewayOrderID *string         `json:"gateway_order_id" binding:"omitempty,max=255"`
	CouponCode     *string         `json:"coupon_code" binding:"omitempty,max=64"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// UpdatePaymentStatusRequest moves a payment to a new status.
type UpdatePaymentStatusRequest struct {
	Status           PaymentStatus        `json:"status" binding:"required,oneof=pending completed failed refunded"`
	GatewayPaymentID *string              `json:"gateway_payment_id" binding:"omitempty,max=255"`
	FailureReason    *string              `json:"failure_reason" binding:"omitempty,max=1000"`
	RefundAmount     *decimal.NullDecimal `json:"refund_amount"`
}

// PaymentResultMessage is a gateway outcome delivered over SQS.
type PaymentResultMessage struct {
	PaymentID        string  `json:"payment_id" validate:"required,uuid"`
	Status           string  `json:"status" validate:"required,oneof=completed failed refunded"`
	GatewayPaymentID *string `json:"gateway_payment_id,omitempty" validate:"omitempty,max=255"`
	FailureReason    *string `json:"failure_reason,omitempty" validate:"omitempty,max=1000"`
}
