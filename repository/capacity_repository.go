package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/database"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CapacityRepository stores dedicated course capacity counters. Every method
// returns ErrNotFound when the course has no dedicated record.
type CapacityRepository interface {
	Get(ctx context.Context, courseID uuid.UUID) (*models.CourseCapacity, error)
	// Reserve takes one seat with a single conditional increment. It fails
	// with ErrCapacityExceeded when the course is full and with
	// ErrConcurrentUpdate when the outcome raced with another writer.
	Reserve(ctx context.Context, courseID uuid.UUID) (*models.CourseCapacity, error)
	Release(ctx context.Context, courseID uuid.UUID) error
	// SetMaxStudents upserts the record; ErrBelowEnrollment when max is
	// lower than the seats already taken.
	SetMaxStudents(ctx context.Context, courseID uuid.UUID, max *int) (*models.CourseCapacity, error)
	// JoinsTransaction reports whether writes take part in the store
	// transaction carried by ctx. When false, callers compensate with Release.
	JoinsTransaction() bool
}

type GormCapacityRepository struct {
	db *gorm.DB
}

func NewGormCapacityRepository(db *gorm.DB) CapacityRepository {
	return &GormCapacityRepository{db: db}
}

func (r *GormCapacityRepository) JoinsTransaction() bool { return true }

func (r *GormCapacityRepository) Get(ctx context.Context, courseID uuid.UUID) (*models.CourseCapacity, error) {
	var capacity models.CourseCapacity
	if err := database.Conn(ctx, r.db).Where("course_id = ?", courseID).First(&capacity).Error; err != nil {
		return nil, translate(err)
	}
	return &capacity, nil
}

func (r *GormCapacityRepository) Reserve(ctx context.Context, courseID uuid.UUID) (*models.CourseCapacity, error) {
	var reserved models.CourseCapacity
	// savepoint when nested, so a retry can follow a failed attempt
	err := database.Conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&reserved).
			Clauses(clause.Returning{}).
			Where("course_id = ? AND (max_students IS NULL OR current_enrollment < max_students)", courseID).
			UpdateColumns(map[string]interface{}{
				"current_enrollment": gorm.Expr("current_enrollment + 1"),
				"updated_at":         time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 1 {
			return nil
		}

		var current models.CourseCapacity
		if err := tx.Where("course_id = ?", courseID).First(&current).Error; err != nil {
			return err
		}
		if current.MaxStudents != nil && current.CurrentEnrollment >= *current.MaxStudents {
			return ErrCapacityExceeded
		}
		// a seat was freed after our conditional write was evaluated
		return ErrConcurrentUpdate
	})
	if err != nil {
		return nil, translate(err)
	}
	return &reserved, nil
}

func (r *GormCapacityRepository) Release(ctx context.Context, courseID uuid.UUID) error {
	result := database.Conn(ctx, r.db).
		Model(&models.CourseCapacity{}).
		Where("course_id = ? AND current_enrollment > 0", courseID).
		UpdateColumns(map[string]interface{}{
			"current_enrollment": gorm.Expr("current_enrollment - 1"),
			"updated_at":         time.Now().UTC(),
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.Get(ctx, courseID); err != nil {
			return err
		}
	}
	return nil
}

func (r *GormCapacityRepository) SetMaxStudents(ctx context.Context, courseID uuid.UUID, max *int) (*models.CourseCapacity, error) {
	conn := database.Conn(ctx, r.db)
	now := time.Now().UTC()

	seed := models.CourseCapacity{CourseID: courseID, MaxStudents: max, UpdatedAt: now}
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "course_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"max_students": max, "updated_at": now}),
	}
	if max != nil {
		onConflict.Where = clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "course_capacities.current_enrollment <= ?", Vars: []interface{}{*max}},
		}}
	}

	result := conn.Clauses(onConflict).Create(&seed)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrBelowEnrollment
	}
	return r.Get(ctx, courseID)
}
