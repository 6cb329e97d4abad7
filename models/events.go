package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Event types published by this service.
const (
	EventEnrollmentCreated         = "enrollment_created"
	EventEnrollmentStatusChanged   = "enrollment_status_changed"
	EventCouponApplied             = "coupon_applied"
	EventPaymentStatusChanged      = "payment_status_changed"
	EventSubscriptionStatusChanged = "subscription_status_changed"
)

// DomainEvent is the envelope published to SNS or Kafka.
type DomainEvent struct {
	EventType string            `json:"event_type"`
	Key       string            `json:"key"`
	Payload   datatypes.JSONMap `json:"payload"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewDomainEvent builds an event; key is used as the Kafka partition key.
func NewDomainEvent(eventType, key string, payload map[string]interface{}) DomainEvent {
	return DomainEvent{
		EventType: eventType,
		Key:       key,
		Payload:   datatypes.JSONMap(payload),
		Timestamp: time.Now().UTC(),
	}
}

// CouponAppliedPayload is the payload of EventCouponApplied.
func CouponAppliedPayload(app *CouponApplication, userID string, courseID string) map[string]interface{} {
	return map[string]interface{}{
		"coupon_id":       app.Coupon.ID.String(),
		"coupon_code":     app.Coupon.Code,
		"user_id":         userID,
		"course_id":       courseID,
		"original_amount": AmountString(app.OriginalAmount),
		"discount_amount": AmountString(app.DiscountAmount),
		"final_amount":    AmountString(app.FinalAmount),
	}
}

// AmountString formats an amount for event payloads.
func AmountString(d decimal.Decimal) string {
	return d.StringFixed(2)
}
