package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/database"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CouponUsageTotals aggregates the usage ledger for one coupon.
type CouponUsageTotals struct {
	Rows          int64
	TotalDiscount decimal.Decimal
	TotalRevenue  decimal.Decimal
}

// CouponUsageRepository is the append-only usage ledger.
type CouponUsageRepository interface {
	// Record inserts usage and increments the coupon's used_count as one
	// unit. ErrDuplicate means the (coupon, user, course) tuple already has a
	// row; ErrUsageLimitReached means the counter is exhausted.
	Record(ctx context.Context, usage *models.CouponUsage) error
	Exists(ctx context.Context, couponID, userID uuid.UUID, courseID *uuid.UUID) (bool, error)
	Totals(ctx context.Context, couponID uuid.UUID) (*CouponUsageTotals, error)
}

type GormCouponUsageRepository struct {
	db *gorm.DB
}

func NewGormCouponUsageRepository(db *gorm.DB) CouponUsageRepository {
	return &GormCouponUsageRepository{db: db}
}

func (r *GormCouponUsageRepository) Record(ctx context.Context, usage *models.CouponUsage) error {
	err := database.Conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		// The partial unique indexes on coupon_usages make this the
		// uniqueness check; a concurrent insert of the same tuple waits on
		// ours and then does nothing.
		insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(usage)
		if insert.Error != nil {
			return insert.Error
		}
		if insert.RowsAffected == 0 {
			return ErrDuplicate
		}

		inc := tx.Model(&models.Coupon{}).
			Where("id = ? AND (usage_limit IS NULL OR used_count < usage_limit)", usage.CouponID).
			UpdateColumn("used_count", gorm.Expr("used_count + 1"))
		if inc.Error != nil {
			return inc.Error
		}
		if inc.RowsAffected == 0 {
			return ErrUsageLimitReached
		}
		return nil
	})
	return translate(err)
}

func (r *GormCouponUsageRepository) Exists(ctx context.Context, couponID, userID uuid.UUID, courseID *uuid.UUID) (bool, error) {
	query := database.Conn(ctx, r.db).
		Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID)
	if courseID != nil {
		query = query.Where("course_id = ?", *courseID)
	} else {
		query = query.Where("course_id IS NULL")
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

func (r *GormCouponUsageRepository) Totals(ctx context.Context, couponID uuid.UUID) (*CouponUsageTotals, error) {
	var row struct {
		UsageRows     int64
		TotalDiscount decimal.Decimal
		TotalRevenue  decimal.Decimal
	}
	err := database.Conn(ctx, r.db).
		Model(&models.CouponUsage{}).
		Select("COUNT(*) AS usage_rows, COALESCE(SUM(discount_amount), 0) AS total_discount, COALESCE(SUM(final_amount), 0) AS total_revenue").
		Where("coupon_id = ?", couponID).
		Scan(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return &CouponUsageTotals{Rows: row.UsageRows, TotalDiscount: row.TotalDiscount, TotalRevenue: row.TotalRevenue}, nil
}
