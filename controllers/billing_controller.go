package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/iPranay05/Skill-Prob-sub002/apperrors"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	"github.com/iPranay05/Skill-Prob-sub002/services"
)

// BillingController handles payments and subscriptions.
type BillingController struct {
	payments      services.PaymentService
	subscriptions services.SubscriptionService
}

func NewBillingController(payments services.PaymentService, subscriptions services.SubscriptionService) *BillingController {
	return &BillingController{payments: payments, subscriptions: subscriptions}
}

// CreatePayment handles POST /payments.
func (bc *BillingController) CreatePayment(ctx *gin.Context) {
	actor, ok := identity(ctx)
	if !ok {
		return
	}
	var req models.CreatePaymentRequest
	if !bindJSON(ctx, &req) {
		return
	}

	payment, err := bc.payments.CreatePayment(ctx.Request.Context(), actor, &req)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"payment": payment})
}

// GetPayment handles GET /payments/:id.
func (bc *BillingController) GetPayment(ctx *gin.Context) {
	actor, ok := identity(ctx)
	if !ok {
		return
	}
	id, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}

	payment, err := bc.payments.GetPayment(ctx.Request.Context(), actor, id)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"payment": payment})
}

// UpdatePaymentStatus handles PATCH /payments/:id/status.
func (bc *BillingController) UpdatePaymentStatus(ctx *gin.Context) {
	actor, ok := identity(ctx)
	if !ok {
		return
	}
	id, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}
	var req models.UpdatePaymentStatusRequest
	if !bindJSON(ctx, &req) {
		return
	}

	payment, err := bc.payments.UpdatePaymentStatus(ctx.Request.Context(), &actor, id, &req)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"payment": payment})
}

// CreateSubscription handles POST /subscriptions.
func (bc *BillingController) CreateSubscription(ctx *gin.Context) {
	actor, ok := identity(ctx)
	if !ok {
		return
	}
	var req models.CreateSubscriptionRequest
	if !bindJSON(ctx, &req) {
		return
	}

	sub, err := bc.subscriptions.CreateSubscription(ctx.Request.Context(), actor, &req)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"subscription": sub})
}

// GetSubscription handles GET /subscriptions/:id.
func (bc *BillingController) GetSubscription(ctx *gin.Context) {
	actor, ok := identity(ctx)
	if !ok {
		return
	}
	id, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}

	sub, err := bc.subscriptions.GetSubscription(ctx.Request.Context(), actor, id)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"subscription": sub})
}

// UpdateSubscriptionStatus handles PATCH /subscriptions/:id/status.
func (bc *BillingController) UpdateSubscriptionStatus(ctx *gin.Context) {
	actor, ok := identity(ctx)
	if !ok {
		return
	}
	id, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}
	var req models.UpdateSubscriptionStatusRequest
	if !bindJSON(ctx, &req) {
		return
	}

	sub, err := bc.subscriptions.UpdateSubscriptionStatus(ctx.Request.Context(), actor, id, &req)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"subscription": sub})
}
