package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/apperrors"
	"github.com/iPranay05/Skill-Prob-sub002/database"
	"github.com/iPranay05/Skill-Prob-sub002/events"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	aws_pkg "github.com/iPranay05/Skill-Prob-sub002/pkg/aws"
	"github.com/iPranay05/Skill-Prob-sub002/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CouponLedger records coupon usages at most once per (coupon, user, course).
type CouponLedger struct {
	coupons   repository.CouponRepository
	usages    repository.CouponUsageRepository
	engine    *CouponEngine
	retry     RetryPolicy
	publisher events.Publisher
	metrics   aws_pkg.MetricsRecorder
	logger    *zap.Logger
}

func NewCouponLedger(
	coupons repository.CouponRepository,
	usages repository.CouponUsageRepository,
	engine *CouponEngine,
	retry RetryPolicy,
	publisher events.Publisher,
	metrics aws_pkg.MetricsRecorder,
	logger *zap.Logger,
) *CouponLedger {
	return &CouponLedger{
		coupons:   coupons,
		usages:    usages,
		engine:    engine,
		retry:     retry,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// ApplyCoupon validates the coupon afresh, prices it and records the usage
// together with the used_count increment. When ctx carries a store
// transaction the usage joins it, and events are left to the caller.
func (l *CouponLedger) ApplyCoupon(
	ctx context.Context,
	code string,
	userID uuid.UUID,
	courseID *uuid.UUID,
	amount decimal.Decimal,
	enrollmentID *uuid.UUID,
) (*models.CouponApplication, error) {
	if amount.IsNegative() {
		return nil, apperrors.Validation("Amount cannot be negative")
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, apperrors.Validation("Coupon code is required")
	}

	var app *models.CouponApplication
	attempts, err := retryOnConflict(ctx, l.retry, func() error {
		var attemptErr error
		app, attemptErr = l.applyOnce(ctx, code, userID, courseID, amount, enrollmentID)
		return attemptErr
	})
	if attempts > 1 {
		l.logger.Info("Coupon application retried", zap.String("code", code), zap.Int("attempts", attempts))
	}
	if err != nil {
		if repository.IsRetryable(err) {
			return nil, apperrors.External("Coupon application kept conflicting, try again", err)
		}
		return nil, err
	}

	l.logger.Info("Coupon applied",
		zap.String("code", code),
		zap.String("user_id", userID.String()),
		zap.String("discount", app.DiscountAmount.String()),
	)
	_ = l.metrics.RecordCount(ctx, aws_pkg.MetricCouponApplied, map[string]string{"Coupon": code})

	if !database.InTransaction(ctx) {
		l.PublishApplied(ctx, app, userID, courseID)
	}
	return app, nil
}

func (l *CouponLedger) applyOnce(
	ctx context.Context,
	code string,
	userID uuid.UUID,
	courseID *uuid.UUID,
	amount decimal.Decimal,
	enrollmentID *uuid.UUID,
) (*models.CouponApplication, error) {
	coupon, err := l.coupons.FindByCode(ctx, code)
	if err != nil {
		return nil, couponLookupError(err)
	}

	app, err := l.engine.Price(coupon, amount)
	if err != nil {
		return nil, err
	}

	used, err := l.usages.Exists(ctx, coupon.ID, userID, courseID)
	if err != nil {
		return nil, apperrors.External("Failed to check coupon usage", err)
	}
	if used {
		return nil, apperrors.ErrCouponAlreadyUsed
	}

	usage := &models.CouponUsage{
		ID:             uuid.New(),
		CouponID:       coupon.ID,
		UserID:         userID,
		CourseID:       courseID,
		EnrollmentID:   enrollmentID,
		OriginalAmount: app.OriginalAmount,
		DiscountAmount: app.DiscountAmount,
		FinalAmount:    app.FinalAmount,
		UsedAt:         time.Now().UTC(),
	}
	if err := l.usages.Record(ctx, usage); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, apperrors.ErrCouponAlreadyUsed
		case errors.Is(err, repository.ErrUsageLimitReached):
			return nil, apperrors.Validation(apperrors.MsgCouponLimitExceeded)
		case repository.IsRetryable(err):
			return nil, err
		}
		return nil, apperrors.External("Failed to record coupon usage", err)
	}

	coupon.UsedCount++
	app.UsageID = usage.ID
	return app, nil
}

// PublishApplied emits the coupon_applied event. Enrollment calls it once its
// transaction has committed.
func (l *CouponLedger) PublishApplied(ctx context.Context, app *models.CouponApplication, userID uuid.UUID, courseID *uuid.UUID) {
	course := ""
	if courseID != nil {
		course = courseID.String()
	}
	event := models.NewDomainEvent(models.EventCouponApplied, app.Coupon.ID.String(),
		models.CouponAppliedPayload(app, userID.String(), course))
	if err := l.publisher.Publish(ctx, event); err != nil {
		l.logger.Warn("Failed to publish coupon_applied event", zap.String("code", app.Coupon.Code), zap.Error(err))
	}
}
