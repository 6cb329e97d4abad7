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

// CourseRepository reads the catalogue's course rows and maintains the
// counters embedded in them for courses without a dedicated capacity record.
type CourseRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
	FindMentorID(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	ReserveSeat(ctx context.Context, id uuid.UUID) (*models.Course, error)
	ReleaseSeat(ctx context.Context, id uuid.UUID) error
}

type GormCourseRepository struct {
	db *gorm.DB
}

func NewGormCourseRepository(db *gorm.DB) CourseRepository {
	return &GormCourseRepository{db: db}
}

func (r *GormCourseRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	var course models.Course
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&course).Error; err != nil {
		return nil, translate(err)
	}
	return &course, nil
}

func (r *GormCourseRepository) FindMentorID(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var course models.Course
	err := database.Conn(ctx, r.db).Select("id", "mentor_id").Where("id = ?", id).First(&course).Error
	if err != nil {
		return uuid.Nil, translate(err)
	}
	return course.MentorID, nil
}

// ReserveSeat mirrors GormCapacityRepository.Reserve on the embedded counters.
func (r *GormCourseRepository) ReserveSeat(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	var course models.Course
	err := database.Conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&course).
			Clauses(clause.Returning{}).
			Where("id = ? AND (enrollment_max_students IS NULL OR enrollment_current < enrollment_max_students)", id).
			UpdateColumns(map[string]interface{}{
				"enrollment_current": gorm.Expr("enrollment_current + 1"),
				"updated_at":         time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 1 {
			return nil
		}

		var current models.Course
		if err := tx.Where("id = ?", id).First(&current).Error; err != nil {
			return err
		}
		if current.MaxStudents != nil && current.CurrentEnrollment >= *current.MaxStudents {
			return ErrCapacityExceeded
		}
		return ErrConcurrentUpdate
	})
	if err != nil {
		return nil, translate(err)
	}
	return &course, nil
}

func (r *GormCourseRepository) ReleaseSeat(ctx context.Context, id uuid.UUID) error {
	result := database.Conn(ctx, r.db).
		Model(&models.Course{}).
		Where("id = ? AND enrollment_current > 0", id).
		UpdateColumns(map[string]interface{}{
			"enrollment_current": gorm.Expr("enrollment_current - 1"),
			"updated_at":         time.Now().UTC(),
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
