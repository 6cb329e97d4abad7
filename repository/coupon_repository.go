package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/database"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	"gorm.io/gorm"
)

// CouponRepository defines the interface for coupon data access.
type CouponRepository interface {
	Create(ctx context.Context, coupon *models.Coupon) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*models.Coupon, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindAll(ctx context.Context, page, limit int) ([]models.Coupon, int64, error)
}

// GormCouponRepository implements CouponRepository using GORM.
type GormCouponRepository struct {
	db *gorm.DB
}

// NewGormCouponRepository creates a new GormCouponRepository.
func NewGormCouponRepository(db *gorm.DB) CouponRepository {
	return &GormCouponRepository{db: db}
}

// Create inserts a new coupon; a taken code yields ErrDuplicate.
func (r *GormCouponRepository) Create(ctx context.Context, coupon *models.Coupon) error {
	return translate(database.Conn(ctx, r.db).Create(coupon).Error)
}

func (r *GormCouponRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&coupon).Error; err != nil {
		return nil, translate(err)
	}
	return &coupon, nil
}

// FindByCode looks a coupon up by its stored (upper-case) code.
func (r *GormCouponRepository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := database.Conn(ctx, r.db).
		Where("code = ?", strings.ToUpper(code)).
		First(&coupon).Error
	if err != nil {
		return nil, translate(err)
	}
	return &coupon, nil
}

func (r *GormCouponRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := database.Conn(ctx, r.db).
		Model(&models.Coupon{}).
		Where("code = ?", strings.ToUpper(code)).
		Count(&count).Error
	if err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

// Update applies updates in one statement. A new usage_limit is only written
// when it is not below the current used_count.
func (r *GormCouponRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*models.Coupon, error) {
	conn := database.Conn(ctx, r.db)
	query := conn.Model(&models.Coupon{}).Where("id = ?", id)
	if limit, ok := updates["usage_limit"].(int); ok {
		query = query.Where("used_count <= ?", limit)
	}

	result := query.Updates(updates)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrUsageLimitReached
	}
	return r.FindByID(ctx, id)
}

// Delete removes a coupon that has never been used.
func (r *GormCouponRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := database.Conn(ctx, r.db).
		Where("id = ? AND used_count = 0", id).
		Delete(&models.Coupon{})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return ErrCouponInUse
	}
	return nil
}

// FindAll retrieves paginated coupons.
func (r *GormCouponRepository) FindAll(ctx context.Context, page, limit int) ([]models.Coupon, int64, error) {
	var coupons []models.Coupon
	var total int64

	query := database.Conn(ctx, r.db).Model(&models.Coupon{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	if err := query.
		Offset(offset(page, limit)).
		Limit(limit).
		Order("created_at DESC").
		Find(&coupons).Error; err != nil {
		return nil, 0, translate(err)
	}
	return coupons, total, nil
}
