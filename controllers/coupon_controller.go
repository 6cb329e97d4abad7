package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/apperrors"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	"github.com/iPranay05/Skill-Prob-sub002/services"
	"github.com/shopspring/decimal"
)

// CouponApplier records a coupon usage.
type CouponApplier interface {
	ApplyCoupon(ctx context.Context, code string, userID uuid.UUID, courseID *uuid.UUID, amount decimal.Decimal, enrollmentID *uuid.UUID) (*models.CouponApplication, error)
}

// CouponController handles HTTP requests for coupon operations.
type CouponController struct {
	couponService services.CouponService
	ledger        CouponApplier
	stats         services.StatsService
}

func NewCouponController(couponService services.CouponService, ledger CouponApplier, stats services.StatsService) *CouponController {
	return &CouponController{couponService: couponService, ledger: ledger, stats: stats}
}

// CreateCoupon handles POST /coupons (admin only).
func (cc *CouponController) CreateCoupon(ctx *gin.Context) {
	actor, ok := identity(ctx)
	if !ok {
		return
	}
	var req models.CreateCouponRequest
	if !bindJSON(ctx, &req) {
		return
	}

	coupon, err := cc.couponService.CreateCoupon(ctx.Request.Context(), actor, &req)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"coupon": coupon})
}

// UpdateCoupon handles PUT /coupons/:id (admin only).
func (cc *CouponController) UpdateCoupon(ctx *gin.Context) {
	actor, ok := identity(ctx)
	if !ok {
		return
	}
	id, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}
	var req models.UpdateCouponRequest
	if !bindJSON(ctx, &req) {
		return
	}

	coupon, err := cc.couponService.UpdateCoupon(ctx.Request.Context(), actor, id, &req)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"coupon": coupon})
}

// DeleteCoupon handles DELETE /coupons/:id (admin only). Coupons with
// recorded usages cannot be deleted.
func (cc *CouponController) DeleteCoupon(ctx *gin.Context) {
	actor, ok := identity(ctx)
	if !ok {
		return
	}
	id, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}

	if err := cc.couponService.DeleteCoupon(ctx.Request.Context(), actor, id); err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Coupon deleted"})
}

// GetCoupon handles GET /coupons/:code.
func (cc *CouponController) GetCoupon(ctx *gin.Context) {
	coupon, err := cc.couponService.GetCoupon(ctx.Request.Context(), ctx.Param("code"))
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"coupon": coupon})
}

// ListCoupons handles GET /coupons (admin only).
func (cc *CouponController) ListCoupons(ctx *gin.Context) {
	actor, ok := identity(ctx)
	if !ok {
		return
	}
	page, limit := parsePaginationParams(ctx)

	coupons, total, err := cc.couponService.ListCoupons(ctx.Request.Context(), actor, page, limit)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"coupons": coupons, "meta": pageMeta(page, limit, total)})
}

// GenerateCode handles POST /coupons/generate-code (admin only).
func (cc *CouponController) GenerateCode(ctx *gin.Context) {
	actor, ok := identity(ctx)
	if !ok {
		return
	}
	var req models.GenerateCodeRequest
	if ctx.Request.ContentLength > 0 && !bindJSON(ctx, &req) {
		return
	}

	code, err := cc.couponService.GenerateUniqueCode(ctx.Request.Context(), actor, req.Prefix, req.Length)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"code": code})
}

// ValidateCoupon handles POST /coupons/validate. It never records a usage.
func (cc *CouponController) ValidateCoupon(ctx *gin.Context) {
	var req models.ValidateCouponRequest
	if !bindJSON(ctx, &req) {
		return
	}

	resp, err := cc.couponService.ValidateCoupon(ctx.Request.Context(), &req)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// ApplyCoupon handles POST /coupons/apply for the calling user.
func (cc *CouponController) ApplyCoupon(ctx *gin.Context) {
	actor, ok := identity(ctx)
	if !ok {
		return
	}
	var req models.ApplyCouponRequest
	if !bindJSON(ctx, &req) {
		return
	}

	app, err := cc.ledger.ApplyCoupon(ctx.Request.Context(), req.Code, actor.UserID, req.CourseID, req.Amount, req.EnrollmentID)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, app)
}

// CouponStats handles GET /coupons/:code/stats.
func (cc *CouponController) CouponStats(ctx *gin.Context) {
	actor, ok := identity(ctx)
	if !ok {
		return
	}

	stats, err := cc.stats.GetCouponStats(ctx.Request.Context(), actor, ctx.Param("code"))
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, stats)
}
