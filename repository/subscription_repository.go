package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/database"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	"gorm.io/gorm"
)

// SubscriptionRepository defines data access for subscriptions.
type SubscriptionRepository interface {
	Create(ctx context.Context, subscription *models.Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from []models.SubscriptionStatus, updates map[string]interface{}) (*models.Subscription, error)
	IncrementFailedPayments(ctx context.Context, id uuid.UUID) error
}

type GormSubscriptionRepository struct {
	db *gorm.DB
}

func NewGormSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

func (r *GormSubscriptionRepository) Create(ctx context.Context, subscription *models.Subscription) error {
	return translate(database.Conn(ctx, r.db).Create(subscription).Error)
}

func (r *GormSubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var subscription models.Subscription
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&subscription).Error; err != nil {
		return nil, translate(err)
	}
	return &subscription, nil
}

func (r *GormSubscriptionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from []models.SubscriptionStatus, updates map[string]interface{}) (*models.Subscription, error) {
	updates["updated_at"] = time.Now().UTC()

	query := database.Conn(ctx, r.db).Model(&models.Subscription{}).Where("id = ?", id)
	if len(from) > 0 {
		query = query.Where("status IN ?", from)
	}
	result := query.Updates(updates)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrStatusPrecondition
	}
	return r.FindByID(ctx, id)
}

func (r *GormSubscriptionRepository) IncrementFailedPayments(ctx context.Context, id uuid.UUID) error {
	result := database.Conn(ctx, r.db).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		UpdateColumn("failed_payment_count", gorm.Expr("failed_payment_count + 1"))
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
