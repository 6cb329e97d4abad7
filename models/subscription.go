package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
)

// Subscription is a recurring billing arrangement for a course.
type Subscription struct {
	ID                 uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	StudentID          uuid.UUID          `gorm:"type:uuid;not null;index" json:"student_id"`
	CourseID           uuid.UUID          `gorm:"type:uuid;not null;index" json:"course_id"`
	BillingCycle       BillingCycle       `gorm:"type:varchar(20);not null" json:"billing_cycle"`
	Status             SubscriptionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Amount             decimal.Decimal    `gorm:"type:numeric(12,2);not null;default:0" json:"amount"`
	Currency           string             `gorm:"type:varchar(10);not null" json:"currency"`
	CurrentPeriodStart time.Time          `gorm:"not null" json:"current_period_start"`
	CurrentPeriodEnd   time.Time          `gorm:"not null" json:"current_period_end"`
	AutoRenew          bool               `gorm:"not null;default:true" json:"auto_renew"`
	FailedPaymentCount int                `gorm:"not null;default:0" json:"failed_payment_count"`
	CancelledAt        *time.Time         `json:"cancelled_at"`
	CancellationReason *string            `gorm:"type:text" json:"cancellation_reason"`
	CreatedAt          time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// PeriodEnd returns the end of a billing period starting at start.
func (c BillingCycle) PeriodEnd(start time.Time) time.Time {
	if c == BillingCycleYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

// CreateSubscriptionRequest opens a subscription.
type CreateSubscriptionRequest struct {
	StudentID    *uuid.UUID      `json:"student_id"`
	CourseID     uuid.UUID       `json:"course_id" binding:"required"`
	BillingCycle BillingCycle    `json:"billing_cycle" binding:"required,oneof=monthly yearly"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency" binding:"omitempty,len=3"`
	AutoRenew    *bool           `json:"auto_renew"`
	StartAt      *time.Time      `json:"start_at"`
}

// UpdateSubscriptionStatusRequest moves a subscription to a new status.
type UpdateSubscriptionStatusRequest struct {
	Status             SubscriptionStatus `json:"status" binding:"required,oneof=active cancelled expired paused"`
	CancellationReason *string            `json:"cancellation_reason" binding:"omitempty,max=1000"`
}
