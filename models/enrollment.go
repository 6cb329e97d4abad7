package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// EnrollmentStatus is the lifecycle state of a course enrollment.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
	EnrollmentStatusExpired   EnrollmentStatus = "expired"
)

// Valid reports whether s is a known enrollment status.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusActive, EnrollmentStatusCompleted, EnrollmentStatusCancelled, EnrollmentStatusExpired:
		return true
	}
	return false
}

// Progress tracks a student's way through a course.
type Progress struct {
	CompletedSessions    datatypes.JSONSlice[string] `gorm:"type:jsonb;not null;default:'[]'" json:"completed_sessions"`
	TotalSessions        int                         `gorm:"not null;default:0" json:"total_sessions"`
	CompletionPercentage float64                     `gorm:"not null;default:0" json:"completion_percentage"`
	TimeSpent            int                         `gorm:"not null;default:0" json:"time_spent"` // minutes
	LastSessionCompleted *string                     `gorm:"type:varchar(128)" json:"last_session_completed"`
}

// CourseEnrollment is a student's seat in a course. Rows are never deleted;
// a student holds at most one non-cancelled enrollment per course.
type CourseEnrollment struct {
	ID               uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CourseID         uuid.UUID        `gorm:"type:uuid;not null;index" json:"course_id"`
	StudentID        uuid.UUID        `gorm:"type:uuid;not null;index" json:"student_id"`
	Status           EnrollmentStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	AmountPaid       decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0" json:"amount_paid"`
	OriginalAmount   decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0" json:"original_amount"`
	DiscountAmount   decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0" json:"discount_amount"`
	Currency         string           `gorm:"type:varchar(10);not null" json:"currency"`
	Progress         Progress         `gorm:"embedded;embeddedPrefix:progress_" json:"progress"`
	EnrollmentDate   time.Time        `gorm:"not null" json:"enrollment_date"`
	AccessExpiresAt  *time.Time       `json:"access_expires_at"`
	EnrollmentSource string           `gorm:"type:varchar(50)" json:"enrollment_source"`
	ReferralCode     *string          `gorm:"type:varchar(64)" json:"referral_code"`
	CouponCode       *string          `gorm:"type:varchar(64)" json:"coupon_code"`
	SubscriptionID   *uuid.UUID       `gorm:"type:uuid" json:"subscription_id"`
	PaymentID        *uuid.UUID       `gorm:"type:uuid" json:"payment_id"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// EnrollRequest is the payload for enrolling a student.
type EnrollRequest struct {
	CourseID         uuid.UUID       `json:"course_id" binding:"required"`
	StudentID        *uuid.UUID      `json:"student_id"` // defaults to the caller
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency" binding:"omitempty,len=3"`
	CouponCode       string          `json:"coupon_code" binding:"omitempty,max=64"`
	EnrollmentSource string          `json:"enrollment_source" binding:"omitempty,max=50"`
	ReferralCode     string          `json:"referral_code" binding:"omitempty,max=64"`
	AccessExpiresAt  *time.Time      `json:"access_expires_at"`
	SubscriptionID   *uuid.UUID      `json:"subscription_id"`
	Gateway          string          `json:"gateway" binding:"omitempty,max=50"`
}

// EnrollmentResult is what a successful enrollment returns.
type EnrollmentResult struct {
	Enrollment *CourseEnrollment  `json:"enrollment"`
	Coupon     *CouponApplication `json:"coupon,omitempty"`
	Payment    *Payment           `json:"payment,omitempty"`
	Capacity   *CapacityView      `json:"capacity,omitempty"`
}

// UpdateEnrollmentStatusRequest sets a new enrollment status.
type UpdateEnrollmentStatusRequest struct {
	Status EnrollmentStatus `json:"status" binding:"required,oneof=active completed cancelled expired"`
}

// ProgressUpdate carries a cumulative session list and a time delta.
// CompletedSessions and CompletionPercentage replace the stored values;
// TimeSpent is added to the stored total.
type ProgressUpdate struct {
	CompletedSessions    []string `json:"completed_sessions" binding:"dive,required,max=128"`
	CompletionPercentage float64  `json:"completion_percentage" binding:"gte=0,lte=100"`
	TimeSpent            int      `json:"time_spent" binding:"gte=0"`
	TotalSessions        *int     `json:"total_sessions" binding:"omitempty,gte=0"`
	LastSessionCompleted *string  `json:"last_session_completed" binding:"omitempty,max=128"`
}

// EnrollmentStats summarises a course's enrollments.
type EnrollmentStats struct {
	CourseID          uuid.UUID                  `json:"course_id"`
	Total             int64                      `json:"total"`
	ByStatus          map[EnrollmentStatus]int64 `json:"by_status"`
	Revenue           decimal.Decimal            `json:"revenue"`
	AverageCompletion float64                    `json:"average_completion"`
	Capacity          CapacityView               `json:"capacity"`
}
