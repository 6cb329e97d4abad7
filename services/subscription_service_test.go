package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/apperrors"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSubscription(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := student()
	start := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)

	sub, err := h.subs.CreateSubscription(ctx, owner, &models.CreateSubscriptionRequest{
		CourseID:     uuid.New(),
		BillingCycle: models.BillingCycleYearly,
		Amount:       dec(4999.999),
		StartAt:      &start,
	})
	require.NoError(t, err)

	assert.Equal(t, owner.UserID, sub.StudentID)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, "INR", sub.Currency)
	assert.True(t, sub.AutoRenew)
	assert.Equal(t, "5000", sub.Amount.String())
	assert.Equal(t, start.AddDate(1, 0, 0), sub.CurrentPeriodEnd)

	t.Run("students cannot subscribe others", func(t *testing.T) {
		other := uuid.New()
		_, err := h.subs.CreateSubscription(ctx, owner, &models.CreateSubscriptionRequest{
			StudentID:    &other,
			CourseID:     uuid.New(),
			BillingCycle: models.BillingCycleMonthly,
		})
		assert.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(err))
	})

	t.Run("unknown billing cycle", func(t *testing.T) {
		_, err := h.subs.CreateSubscription(ctx, owner, &models.CreateSubscriptionRequest{
			CourseID:     uuid.New(),
			BillingCycle: "weekly",
		})
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	})

	t.Run("negative amount", func(t *testing.T) {
		_, err := h.subs.CreateSubscription(ctx, owner, &models.CreateSubscriptionRequest{
			CourseID:     uuid.New(),
			BillingCycle: models.BillingCycleMonthly,
			Amount:       dec(-1),
		})
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	})
}

func TestSubscriptionStatusTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := student()

	sub, err := h.subs.CreateSubscription(ctx, owner, &models.CreateSubscriptionRequest{
		CourseID:     uuid.New(),
		BillingCycle: models.BillingCycleMonthly,
		Amount:       dec(499),
	})
	require.NoError(t, err)

	move := func(to models.SubscriptionStatus, reason *string) (*models.Subscription, error) {
		return h.subs.UpdateSubscriptionStatus(ctx, owner, sub.ID, &models.UpdateSubscriptionStatusRequest{Status: to, CancellationReason: reason})
	}

	paused, err := move(models.SubscriptionStatusPaused, nil)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPaused, paused.Status)

	same, err := move(models.SubscriptionStatusPaused, nil)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPaused, same.Status)

	reason := "moving abroad"
	cancelled, err := move(models.SubscriptionStatusCancelled, &reason)
	require.NoError(t, err)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.False(t, cancelled.AutoRenew)
	assert.Equal(t, "moving abroad", *cancelled.CancellationReason)

	_, err = move(models.SubscriptionStatusActive, nil)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	_, err = move("archived", nil)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	assert.Equal(t, 2, h.pub.count(models.EventSubscriptionStatusChanged))
}

func TestSubscriptionAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := student()

	sub, err := h.subs.CreateSubscription(ctx, owner, &models.CreateSubscriptionRequest{
		CourseID:     uuid.New(),
		BillingCycle: models.BillingCycleMonthly,
	})
	require.NoError(t, err)

	_, err = h.subs.GetSubscription(ctx, student(), sub.ID)
	assert.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(err))

	_, err = h.subs.UpdateSubscriptionStatus(ctx, student(), sub.ID, &models.UpdateSubscriptionStatusRequest{Status: models.SubscriptionStatusPaused})
	assert.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(err))

	got, err := h.subs.GetSubscription(ctx, admin(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)

	_, err = h.subs.GetSubscription(ctx, admin(), uuid.New())
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}
