package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/apperrors"
	"github.com/iPranay05/Skill-Prob-sub002/database"
	"github.com/iPranay05/Skill-Prob-sub002/events"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	aws_pkg "github.com/iPranay05/Skill-Prob-sub002/pkg/aws"
	"github.com/iPranay05/Skill-Prob-sub002/repository"
	"go.uber.org/zap"
)

// paymentTransitions lists, per target status, the statuses it may be
// reached from.
var paymentTransitions = map[models.PaymentStatus][]models.PaymentStatus{
	models.PaymentStatusCompleted: {models.PaymentStatusPending, models.PaymentStatusFailed},
	models.PaymentStatusFailed:    {models.PaymentStatusPending},
	models.PaymentStatusRefunded:  {models.PaymentStatusCompleted},
}

// PaymentService defines the interface for payment records.
type PaymentService interface {
	CreatePayment(ctx context.Context, actor models.Identity, req *models.CreatePaymentRequest) (*models.Payment, error)
	GetPayment(ctx context.Context, actor models.Identity, id uuid.UUID) (*models.Payment, error)
	// UpdatePaymentStatus applies a status transition. A nil actor is the
	// system itself (the gateway result consumer).
	UpdatePaymentStatus(ctx context.Context, actor *models.Identity, id uuid.UUID, req *models.UpdatePaymentStatusRequest) (*models.Payment, error)
}

type paymentServiceImpl struct {
	tx            database.Transactor
	payments      repository.PaymentRepository
	enrollments   repository.EnrollmentRepository
	subscriptions repository.SubscriptionRepository
	publisher     events.Publisher
	metrics       aws_pkg.MetricsRecorder
	logger        *zap.Logger
}

func NewPaymentService(
	tx database.Transactor,
	payments repository.PaymentRepository,
	enrollments repository.EnrollmentRepository,
	subscriptions repository.SubscriptionRepository,
	publisher events.Publisher,
	metrics aws_pkg.MetricsRecorder,
	logger *zap.Logger,
) PaymentService {
	return &paymentServiceImpl{
		tx:            tx,
		payments:      payments,
		enrollments:   enrollments,
		subscriptions: subscriptions,
		publisher:     publisher,
		metrics:       metrics,
		logger:        logger,
	}
}

func (s *paymentServiceImpl) CreatePayment(ctx context.Context, actor models.Identity, req *models.CreatePaymentRequest) (*models.Payment, error) {
	studentID := actor.UserID
	if req.StudentID != nil {
		studentID = *req.StudentID
	}
	if !CanActFor(actor, studentID, CapPaymentManagement) {
		return nil, apperrors.Forbidden("Not authorized to create payments for another user")
	}
	if req.Amount.IsNegative() {
		return nil, apperrors.Validation("Amount cannot be negative")
	}
	if req.DiscountAmount.IsNegative() {
		return nil, apperrors.Validation("discount_amount cannot be negative")
	}
	if req.EnrollmentID != nil {
		enrollment, err := s.enrollments.FindByID(ctx, *req.EnrollmentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NotFound("Enrollment not found")
			}
			return nil, apperrors.External("Failed to fetch enrollment", err)
		}
		if req.StudentID == nil && HasCapability(actor.Role, CapPaymentManagement) {
			studentID = enrollment.StudentID
		}
		if enrollment.StudentID != studentID {
			return nil, apperrors.Forbidden("Enrollment belongs to another student")
		}
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = defaultCurrency
	}

	payment := &models.Payment{
		ID:             uuid.New(),
		StudentID:      studentID,
		CourseID:       req.CourseID,
		EnrollmentID:   req.EnrollmentID,
		SubscriptionID: req.SubscriptionID,
		Amount:         req.Amount.Round(2),
		Currency:       currency,
		Status:         models.PaymentStatusPending,
		Gateway:        req.Gateway,
		GatewayOrderID: req.GatewayOrderID,
		CouponCode:     req.CouponCode,
		DiscountAmount: req.DiscountAmount.Round(2),
	}
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.payments.Create(txCtx, payment); err != nil {
			return apperrors.External("Failed to create payment", err)
		}
		if payment.EnrollmentID == nil {
			return nil
		}
		err := s.enrollments.SetPaymentID(txCtx, *payment.EnrollmentID, studentID, payment.ID)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, repository.ErrNotFound):
			return apperrors.NotFound("Enrollment not found")
		case errors.Is(err, repository.ErrOwnershipMismatch):
			return apperrors.Forbidden("Enrollment belongs to another student")
		}
		return apperrors.External("Failed to link payment to enrollment", err)
	})
	if err != nil {
		s.logger.Error("Failed to create payment", zap.String("student_id", studentID.String()), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Payment created",
		zap.String("payment_id", payment.ID.String()),
		zap.String("amount", payment.Amount.StringFixed(2)),
	)
	return payment, nil
}

func (s *paymentServiceImpl) GetPayment(ctx context.Context, actor models.Identity, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.findPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanActFor(actor, payment.StudentID, CapPaymentManagement) {
		return nil, apperrors.Forbidden("Not authorized to view this payment")
	}
	return payment, nil
}

func (s *paymentServiceImpl) UpdatePaymentStatus(ctx context.Context, actor *models.Identity, id uuid.UUID, req *models.UpdatePaymentStatusRequest) (*models.Payment, error) {
	if actor != nil {
		if err := Require(*actor, CapPaymentManagement); err != nil {
			return nil, err
		}
	}
	if req.Status == models.PaymentStatusPending {
		return nil, apperrors.Validation("Payment cannot return to pending")
	}
	from, ok := paymentTransitions[req.Status]
	if !ok {
		return nil, apperrors.Validation("Invalid payment status")
	}

	current, err := s.findPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == req.Status {
		return current, nil
	}

	updates := map[string]interface{}{"status": req.Status}
	switch req.Status {
	case models.PaymentStatusCompleted:
		updates["payment_date"] = time.Now().UTC()
		updates["failure_reason"] = nil
		if req.GatewayPaymentID != nil {
			updates["gateway_payment_id"] = *req.GatewayPaymentID
		}
	case models.PaymentStatusFailed:
		if req.FailureReason != nil {
			updates["failure_reason"] = *req.FailureReason
		}
	case models.PaymentStatusRefunded:
		refund := current.Amount
		if req.RefundAmount != nil && req.RefundAmount.Valid {
			refund = req.RefundAmount.Decimal.Round(2)
		}
		if refund.IsNegative() || refund.GreaterThan(current.Amount) {
			return nil, apperrors.Validation("refund_amount must be between 0 and the paid amount")
		}
		updates["refund_amount"] = refund
	}

	updated, err := s.payments.UpdateStatus(ctx, id, from, updates)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrStatusPrecondition):
			return nil, apperrors.Conflict(fmt.Sprintf("Payment cannot move from %s to %s", current.Status, req.Status))
		case errors.Is(err, repository.ErrDuplicate):
			return nil, apperrors.Conflict("Gateway payment id already recorded")
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("Payment not found")
		}
		return nil, apperrors.External("Failed to update payment", err)
	}

	if req.Status == models.PaymentStatusFailed && updated.SubscriptionID != nil {
		if err := s.subscriptions.IncrementFailedPayments(ctx, *updated.SubscriptionID); err != nil {
			s.logger.Warn("Failed to count failed subscription payment",
				zap.String("subscription_id", updated.SubscriptionID.String()),
				zap.Error(err),
			)
		}
	}

	_ = s.metrics.RecordCount(ctx, aws_pkg.MetricPaymentStatusChanged, map[string]string{"Status": string(req.Status)})
	s.logger.Info("Payment status updated",
		zap.String("payment_id", id.String()),
		zap.String("from", string(current.Status)),
		zap.String("to", string(req.Status)),
	)

	event := models.NewDomainEvent(models.EventPaymentStatusChanged, id.String(), map[string]interface{}{
		"payment_id": id.String(),
		"student_id": updated.StudentID.String(),
		"from":       string(current.Status),
		"to":         string(req.Status),
		"amount":     models.AmountString(updated.Amount),
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event", zap.String("event_type", event.EventType), zap.Error(err))
	}
	return updated, nil
}

func (s *paymentServiceImpl) findPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Payment not found")
		}
		return nil, apperrors.External("Failed to fetch payment", err)
	}
	return payment, nil
}
