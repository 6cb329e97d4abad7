package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/database"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	"gorm.io/gorm"
)

// PaymentRepository defines data access for payments.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	// UpdateStatus writes updates only while the row's status is one of from
	// (any status when from is empty); otherwise ErrStatusPrecondition.
	UpdateStatus(ctx context.Context, id uuid.UUID, from []models.PaymentStatus, updates map[string]interface{}) (*models.Payment, error)
}

type gormPaymentRepo struct {
	db *gorm.DB
}

func NewGormPaymentRepository(db *gorm.DB) PaymentRepository {
	return &gormPaymentRepo{db: db}
}

func (r *gormPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	return translate(database.Conn(ctx, r.db).Create(payment).Error)
}

func (r *gormPaymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, translate(err)
	}
	return &payment, nil
}

func (r *gormPaymentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from []models.PaymentStatus, updates map[string]interface{}) (*models.Payment, error) {
	updates["updated_at"] = time.Now().UTC()

	query := database.Conn(ctx, r.db).Model(&models.Payment{}).Where("id = ?", id)
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
