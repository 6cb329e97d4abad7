package services

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/apperrors"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	aws_pkg "github.com/iPranay05/Skill-Prob-sub002/pkg/aws"
	"go.uber.org/zap"
)

// snsEnvelope unwraps the SNS → SQS message wrapper.
type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// PaymentResultConsumer applies gateway results delivered over SQS.
type PaymentResultConsumer struct {
	payments PaymentService
	validate *validator.Validate
	metrics  aws_pkg.MetricsRecorder
	logger   *zap.Logger
}

func NewPaymentResultConsumer(payments PaymentService, metrics aws_pkg.MetricsRecorder, logger *zap.Logger) *PaymentResultConsumer {
	return &PaymentResultConsumer{
		payments: payments,
		validate: models.NewValidator(),
		metrics:  metrics,
		logger:   logger,
	}
}

// HandleMessage returns nil for messages that are done with, including
// unparseable ones and transitions that were already applied. Any other
// error leaves the message for redelivery.
func (c *PaymentResultConsumer) HandleMessage(ctx context.Context, body string) error {
	payload := []byte(body)

	var envelope snsEnvelope
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Type == "Notification" {
		payload = []byte(envelope.Message)
	}

	var msg models.PaymentResultMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Error("Failed to unmarshal payment result", zap.Error(err))
		return nil
	}
	if err := c.validate.Struct(&msg); err != nil {
		c.logger.Error("Invalid payment result", zap.String("payment_id", msg.PaymentID), zap.Error(err))
		return nil
	}
	paymentID, err := uuid.Parse(msg.PaymentID)
	if err != nil {
		return nil
	}

	req := &models.UpdatePaymentStatusRequest{
		Status:           models.PaymentStatus(msg.Status),
		GatewayPaymentID: msg.GatewayPaymentID,
		FailureReason:    msg.FailureReason,
	}
	if _, err := c.payments.UpdatePaymentStatus(ctx, nil, paymentID, req); err != nil {
		switch apperrors.KindOf(err) {
		case apperrors.KindValidation, apperrors.KindNotFound, apperrors.KindConflict:
			c.logger.Warn("Dropping payment result",
				zap.String("payment_id", msg.PaymentID),
				zap.String("status", msg.Status),
				zap.Error(err),
			)
			return nil
		}
		return err
	}

	_ = c.metrics.RecordCount(ctx, aws_pkg.MetricSQSMessages, map[string]string{"Queue": "payment-results"})
	c.logger.Info("Payment result applied", zap.String("payment_id", msg.PaymentID), zap.String("status", msg.Status))
	return nil
}
