package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/apperrors"
	"github.com/iPranay05/Skill-Prob-sub002/events"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	"github.com/iPranay05/Skill-Prob-sub002/repository"
	"go.uber.org/zap"
)

// Cancelled and expired are terminal.
var subscriptionTransitions = map[models.SubscriptionStatus][]models.SubscriptionStatus{
	models.SubscriptionStatusActive:    {models.SubscriptionStatusPaused},
	models.SubscriptionStatusPaused:    {models.SubscriptionStatusActive},
	models.SubscriptionStatusCancelled: {models.SubscriptionStatusActive, models.SubscriptionStatusPaused},
	models.SubscriptionStatusExpired:   {models.SubscriptionStatusActive, models.SubscriptionStatusPaused},
}

// SubscriptionService defines the interface for recurring billing records.
type SubscriptionService interface {
	CreateSubscription(ctx context.Context, actor models.Identity, req *models.CreateSubscriptionRequest) (*models.Subscription, error)
	GetSubscription(ctx context.Context, actor models.Identity, id uuid.UUID) (*models.Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, actor models.Identity, id uuid.UUID, req *models.UpdateSubscriptionStatusRequest) (*models.Subscription, error)
}

type subscriptionServiceImpl struct {
	repo      repository.SubscriptionRepository
	publisher events.Publisher
	logger    *zap.Logger
}

func NewSubscriptionService(repo repository.SubscriptionRepository, publisher events.Publisher, logger *zap.Logger) SubscriptionService {
	return &subscriptionServiceImpl{repo: repo, publisher: publisher, logger: logger}
}

func (s *subscriptionServiceImpl) CreateSubscription(ctx context.Context, actor models.Identity, req *models.CreateSubscriptionRequest) (*models.Subscription, error) {
	studentID := actor.UserID
	if req.StudentID != nil {
		studentID = *req.StudentID
	}
	if !CanActFor(actor, studentID, CapEnrollOthers) {
		return nil, apperrors.Forbidden("Not authorized to subscribe another user")
	}
	if req.BillingCycle != models.BillingCycleMonthly && req.BillingCycle != models.BillingCycleYearly {
		return nil, apperrors.Validation("billing_cycle must be monthly or yearly")
	}
	if req.Amount.IsNegative() {
		return nil, apperrors.Validation("Amount cannot be negative")
	}

	start := time.Now().UTC()
	if req.StartAt != nil {
		start = req.StartAt.UTC()
	}
	autoRenew := true
	if req.AutoRenew != nil {
		autoRenew = *req.AutoRenew
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = defaultCurrency
	}

	sub := &models.Subscription{
		ID:                 uuid.New(),
		StudentID:          studentID,
		CourseID:           req.CourseID,
		BillingCycle:       req.BillingCycle,
		Status:             models.SubscriptionStatusActive,
		Amount:             req.Amount.Round(2),
		Currency:           currency,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   req.BillingCycle.PeriodEnd(start),
		AutoRenew:          autoRenew,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, apperrors.External("Failed to create subscription", err)
	}
	s.logger.Info("Subscription created",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("billing_cycle", string(sub.BillingCycle)),
	)
	return sub, nil
}

func (s *subscriptionServiceImpl) GetSubscription(ctx context.Context, actor models.Identity, id uuid.UUID) (*models.Subscription, error) {
	sub, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanActFor(actor, sub.StudentID, CapPaymentManagement) {
		return nil, apperrors.Forbidden("Not authorized to view this subscription")
	}
	return sub, nil
}

func (s *subscriptionServiceImpl) UpdateSubscriptionStatus(ctx context.Context, actor models.Identity, id uuid.UUID, req *models.UpdateSubscriptionStatusRequest) (*models.Subscription, error) {
	from, ok := subscriptionTransitions[req.Status]
	if !ok {
		return nil, apperrors.Validation("Invalid subscription status")
	}

	current, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanActFor(actor, current.StudentID, CapPaymentManagement) {
		return nil, apperrors.Forbidden("Not authorized to update this subscription")
	}
	if current.Status == req.Status {
		return current, nil
	}

	updates := map[string]interface{}{"status": req.Status}
	if req.Status == models.SubscriptionStatusCancelled {
		updates["cancelled_at"] = time.Now().UTC()
		updates["auto_renew"] = false
		if req.CancellationReason != nil {
			updates["cancellation_reason"] = *req.CancellationReason
		}
	}

	updated, err := s.repo.UpdateStatus(ctx, id, from, updates)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrStatusPrecondition):
			return nil, apperrors.Conflict(fmt.Sprintf("Subscription cannot move from %s to %s", current.Status, req.Status))
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("Subscription not found")
		}
		return nil, apperrors.External("Failed to update subscription", err)
	}

	s.logger.Info("Subscription status updated",
		zap.String("subscription_id", id.String()),
		zap.String("from", string(current.Status)),
		zap.String("to", string(req.Status)),
	)
	event := models.NewDomainEvent(models.EventSubscriptionStatusChanged, id.String(), map[string]interface{}{
		"subscription_id": id.String(),
		"student_id":      updated.StudentID.String(),
		"from":            string(current.Status),
		"to":              string(req.Status),
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event", zap.String("event_type", event.EventType), zap.Error(err))
	}
	return updated, nil
}

func (s *subscriptionServiceImpl) find(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Subscription not found")
		}
		return nil, apperrors.External("Failed to fetch subscription", err)
	}
	return sub, nil
}
