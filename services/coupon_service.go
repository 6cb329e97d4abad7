package services

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/apperrors"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	"github.com/iPranay05/Skill-Prob-sub002/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	codeAlphabet          = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	defaultCodeLength     = 8
	codeGenerationRetries = 10
)

// CouponService defines the interface for coupon administration and
// dry-run validation.
type CouponService interface {
	CreateCoupon(ctx context.Context, actor models.Identity, req *models.CreateCouponRequest) (*models.Coupon, error)
	UpdateCoupon(ctx context.Context, actor models.Identity, id uuid.UUID, req *models.UpdateCouponRequest) (*models.Coupon, error)
	DeleteCoupon(ctx context.Context, actor models.Identity, id uuid.UUID) error
	GetCoupon(ctx context.Context, code string) (*models.Coupon, error)
	ListCoupons(ctx context.Context, actor models.Identity, page, limit int) ([]models.Coupon, int64, error)
	ValidateCoupon(ctx context.Context, req *models.ValidateCouponRequest) (*models.ValidateCouponResponse, error)
	GenerateUniqueCode(ctx context.Context, actor models.Identity, prefix string, length int) (string, error)
}

type couponServiceImpl struct {
	repo   repository.CouponRepository
	engine *CouponEngine
	logger *zap.Logger
}

func NewCouponService(repo repository.CouponRepository, engine *CouponEngine, logger *zap.Logger) CouponService {
	return &couponServiceImpl{repo: repo, engine: engine, logger: logger}
}

func (s *couponServiceImpl) CreateCoupon(ctx context.Context, actor models.Identity, req *models.CreateCouponRequest) (*models.Coupon, error) {
	if err := Require(actor, CapCouponManagement); err != nil {
		return nil, err
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if !models.IsCouponCode(code) {
		return nil, apperrors.Validation("Coupon code may only contain letters, digits, hyphens and underscores")
	}

	validFrom := time.Now().UTC()
	if req.ValidFrom != nil {
		validFrom = *req.ValidFrom
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	coupon := &models.Coupon{
		Code:          code,
		Description:   req.Description,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		MinAmount:     req.MinAmount,
		MaxDiscount:   req.MaxDiscount,
		UsageLimit:    req.UsageLimit,
		ValidFrom:     validFrom,
		ValidUntil:    req.ValidUntil,
		IsActive:      isActive,
		CreatedBy:     actor.UserID,
	}
	if err := validateCouponTerms(coupon); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByCode(ctx, code)
	if err != nil {
		return nil, apperrors.External("Failed to create coupon", err)
	}
	if exists {
		return nil, apperrors.Conflict(apperrors.MsgCouponCodeExists)
	}

	if err := s.repo.Create(ctx, coupon); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict(apperrors.MsgCouponCodeExists)
		}
		s.logger.Error("Failed to create coupon", zap.String("code", code), zap.Error(err))
		return nil, apperrors.External("Failed to create coupon", err)
	}

	s.logger.Info("Coupon created", zap.String("code", coupon.Code), zap.String("type", string(coupon.DiscountType)))
	return coupon, nil
}

func (s *couponServiceImpl) UpdateCoupon(ctx context.Context, actor models.Identity, id uuid.UUID, req *models.UpdateCouponRequest) (*models.Coupon, error) {
	if err := Require(actor, CapCouponManagement); err != nil {
		return nil, err
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, couponLookupError(err)
	}

	merged := *current
	updates := map[string]interface{}{}

	if req.Code != nil {
		code := strings.ToUpper(strings.TrimSpace(*req.Code))
		if !models.IsCouponCode(code) {
			return nil, apperrors.Validation("Coupon code may only contain letters, digits, hyphens and underscores")
		}
		if code != current.Code {
			exists, err := s.repo.ExistsByCode(ctx, code)
			if err != nil {
				return nil, apperrors.External("Failed to update coupon", err)
			}
			if exists {
				return nil, apperrors.Conflict(apperrors.MsgCouponCodeExists)
			}
			merged.Code = code
			updates["code"] = code
		}
	}
	if req.Description != nil {
		merged.Description = *req.Description
		updates["description"] = *req.Description
	}
	if req.DiscountType != nil {
		merged.DiscountType = *req.DiscountType
		updates["discount_type"] = *req.DiscountType
	}
	if req.DiscountValue != nil {
		merged.DiscountValue = *req.DiscountValue
		updates["discount_value"] = *req.DiscountValue
	}
	if req.MinAmount != nil {
		merged.MinAmount = *req.MinAmount
		updates["min_amount"] = *req.MinAmount
	}
	if req.MaxDiscount != nil {
		merged.MaxDiscount = *req.MaxDiscount
		updates["max_discount"] = *req.MaxDiscount
	}
	switch {
	case req.ClearLimit:
		merged.UsageLimit = nil
		updates["usage_limit"] = nil
	case req.UsageLimit != nil:
		if *req.UsageLimit < current.UsedCount {
			return nil, apperrors.Conflict("Usage limit cannot be below the current used count")
		}
		merged.UsageLimit = req.UsageLimit
		updates["usage_limit"] = *req.UsageLimit
	}
	if req.ValidFrom != nil {
		merged.ValidFrom = *req.ValidFrom
		updates["valid_from"] = *req.ValidFrom
	}
	if req.ValidUntil != nil {
		merged.ValidUntil = req.ValidUntil
		updates["valid_until"] = *req.ValidUntil
	}
	if req.IsActive != nil {
		merged.IsActive = *req.IsActive
		updates["is_active"] = *req.IsActive
	}

	if err := validateCouponTerms(&merged); err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return current, nil
	}

	updated, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, apperrors.Conflict(apperrors.MsgCouponCodeExists)
		case errors.Is(err, repository.ErrUsageLimitReached):
			return nil, apperrors.Conflict("Usage limit cannot be below the current used count")
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("Coupon not found")
		}
		s.logger.Error("Failed to update coupon", zap.String("coupon_id", id.String()), zap.Error(err))
		return nil, apperrors.External("Failed to update coupon", err)
	}
	return updated, nil
}

func (s *couponServiceImpl) DeleteCoupon(ctx context.Context, actor models.Identity, id uuid.UUID) error {
	if err := Require(actor, CapCouponManagement); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrCouponInUse):
			return apperrors.ErrCouponInUse
		case errors.Is(err, repository.ErrNotFound):
			return apperrors.NotFound("Coupon not found")
		}
		return apperrors.External("Failed to delete coupon", err)
	}
	s.logger.Info("Coupon deleted", zap.String("coupon_id", id.String()))
	return nil
}

func (s *couponServiceImpl) GetCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, couponLookupError(err)
	}
	return coupon, nil
}

func (s *couponServiceImpl) ListCoupons(ctx context.Context, actor models.Identity, page, limit int) ([]models.Coupon, int64, error) {
	if err := Require(actor, CapCouponManagement); err != nil {
		return nil, 0, err
	}
	coupons, total, err := s.repo.FindAll(ctx, page, limit)
	if err != nil {
		return nil, 0, apperrors.External("Failed to fetch coupons", err)
	}
	return coupons, total, nil
}

// ValidateCoupon prices a coupon without recording a usage.
func (s *couponServiceImpl) ValidateCoupon(ctx context.Context, req *models.ValidateCouponRequest) (*models.ValidateCouponResponse, error) {
	if req.Amount.IsNegative() {
		return nil, apperrors.Validation("Amount cannot be negative")
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &models.ValidateCouponResponse{Code: code, Error: "Coupon not found", FinalAmount: req.Amount}, nil
		}
		return nil, apperrors.External("Failed to validate coupon", err)
	}

	result := s.engine.ValidateCoupon(coupon, req.Amount)
	if !result.IsValid {
		return &models.ValidateCouponResponse{Code: code, Error: result.Error, FinalAmount: req.Amount}, nil
	}

	discount := s.engine.CalculateDiscount(coupon, req.Amount)
	return &models.ValidateCouponResponse{
		IsValid:        true,
		Code:           code,
		DiscountAmount: discount,
		FinalAmount:    req.Amount.Sub(discount),
	}, nil
}

// GenerateUniqueCode draws random [A-Z0-9] codes until one is free, giving
// up after a fixed number of attempts.
func (s *couponServiceImpl) GenerateUniqueCode(ctx context.Context, actor models.Identity, prefix string, length int) (string, error) {
	if err := Require(actor, CapCouponManagement); err != nil {
		return "", err
	}
	if length <= 0 {
		length = defaultCodeLength
	}
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix != "" && !models.IsCouponCode(prefix) {
		return "", apperrors.Validation("Coupon code prefix may only contain letters, digits, hyphens and underscores")
	}

	for attempt := 1; attempt <= codeGenerationRetries; attempt++ {
		suffix, err := randomCode(length)
		if err != nil {
			return "", apperrors.Internal("Failed to generate coupon code", err)
		}
		code := prefix + suffix

		exists, err := s.repo.ExistsByCode(ctx, code)
		if err != nil {
			return "", apperrors.External("Failed to generate coupon code", err)
		}
		if !exists {
			return code, nil
		}
		s.logger.Debug("Generated coupon code collided", zap.String("code", code), zap.Int("attempt", attempt))
	}
	return "", apperrors.New(apperrors.KindGenerationExhausted, apperrors.MsgCodeGenerationFailed, nil)
}

func randomCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// validateCouponTerms checks the numeric and date rules of a coupon.
func validateCouponTerms(c *models.Coupon) error {
	if !c.DiscountType.Valid() {
		return apperrors.Validation("discount_type must be percentage or fixed")
	}
	if c.DiscountValue.IsNegative() {
		return apperrors.Validation("discount_value cannot be negative")
	}
	if c.DiscountType == models.DiscountTypePercentage && c.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return apperrors.Validation("Percentage discount cannot exceed 100")
	}
	if c.MinAmount.IsNegative() {
		return apperrors.Validation("min_amount cannot be negative")
	}
	if c.MaxDiscount.Valid {
		if c.DiscountType != models.DiscountTypePercentage {
			return apperrors.Validation("max_discount only applies to percentage coupons")
		}
		if c.MaxDiscount.Decimal.IsNegative() {
			return apperrors.Validation("max_discount cannot be negative")
		}
	}
	if c.UsageLimit != nil && *c.UsageLimit < 1 {
		return apperrors.Validation("usage_limit must be at least 1")
	}
	if c.ValidUntil != nil && !c.ValidUntil.After(c.ValidFrom) {
		return apperrors.Validation("valid_until must be after valid_from")
	}
	return nil
}

func couponLookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("Coupon not found")
	}
	return apperrors.External("Failed to fetch coupon", err)
}
