package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/database"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// liveStatuses are the statuses covered by the one-enrollment-per-course
// unique index.
var liveStatuses = []models.EnrollmentStatus{
	models.EnrollmentStatusActive,
	models.EnrollmentStatusCompleted,
	models.EnrollmentStatusExpired,
}

// EnrollmentTotals aggregates a course's enrollments.
type EnrollmentTotals struct {
	Revenue           decimal.Decimal
	AverageCompletion float64
}

// EnrollmentRepository defines data access for course enrollments.
type EnrollmentRepository interface {
	// Create inserts the row; ErrDuplicate when the student already holds a
	// live enrollment for the course.
	Create(ctx context.Context, enrollment *models.CourseEnrollment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.CourseEnrollment, error)
	FindLive(ctx context.Context, courseID, studentID uuid.UUID) (*models.CourseEnrollment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.EnrollmentStatus) (*models.CourseEnrollment, error)
	// ApplyProgress replaces the session list and percentage and adds
	// update.TimeSpent to the stored total in one statement. Only the row's
	// own student may write; other callers get ErrOwnershipMismatch.
	ApplyProgress(ctx context.Context, id, studentID uuid.UUID, update models.ProgressUpdate) (*models.CourseEnrollment, error)
	SetPaymentID(ctx context.Context, id, studentID, paymentID uuid.UUID) error
	ListByStudent(ctx context.Context, studentID uuid.UUID, page, limit int) ([]models.CourseEnrollment, int64, error)
	ListByCourse(ctx context.Context, courseID uuid.UUID, page, limit int) ([]models.CourseEnrollment, int64, error)
	CountByStatus(ctx context.Context, courseID uuid.UUID) (map[models.EnrollmentStatus]int64, error)
	Totals(ctx context.Context, courseID uuid.UUID) (*EnrollmentTotals, error)
}

type GormEnrollmentRepository struct {
	db *gorm.DB
}

func NewGormEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &GormEnrollmentRepository{db: db}
}

func (r *GormEnrollmentRepository) Create(ctx context.Context, enrollment *models.CourseEnrollment) error {
	// savepoint keeps an outer transaction usable after a unique violation
	err := database.Conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		return tx.Create(enrollment).Error
	})
	return translate(err)
}

func (r *GormEnrollmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.CourseEnrollment, error) {
	var enrollment models.CourseEnrollment
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&enrollment).Error; err != nil {
		return nil, translate(err)
	}
	return &enrollment, nil
}

func (r *GormEnrollmentRepository) FindLive(ctx context.Context, courseID, studentID uuid.UUID) (*models.CourseEnrollment, error) {
	var enrollment models.CourseEnrollment
	err := database.Conn(ctx, r.db).
		Where("course_id = ? AND student_id = ? AND status IN ?", courseID, studentID, liveStatuses).
		First(&enrollment).Error
	if err != nil {
		return nil, translate(err)
	}
	return &enrollment, nil
}

func (r *GormEnrollmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.EnrollmentStatus) (*models.CourseEnrollment, error) {
	var result *gorm.DB
	err := database.Conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		result = tx.Model(&models.CourseEnrollment{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"status":     status,
				"updated_at": time.Now().UTC(),
			})
		return result.Error
	})
	if err != nil {
		return nil, translate(err)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *GormEnrollmentRepository) ApplyProgress(ctx context.Context, id, studentID uuid.UUID, update models.ProgressUpdate) (*models.CourseEnrollment, error) {
	sessions := update.CompletedSessions
	if sessions == nil {
		sessions = []string{}
	}
	columns := map[string]interface{}{
		"progress_completed_sessions":    datatypes.JSONSlice[string](sessions),
		"progress_completion_percentage": update.CompletionPercentage,
		"progress_time_spent":            gorm.Expr("progress_time_spent + ?", update.TimeSpent),
		"updated_at":                     time.Now().UTC(),
	}
	if update.TotalSessions != nil {
		columns["progress_total_sessions"] = *update.TotalSessions
	}
	if update.LastSessionCompleted != nil {
		columns["progress_last_session_completed"] = *update.LastSessionCompleted
	}

	result := database.Conn(ctx, r.db).
		Model(&models.CourseEnrollment{}).
		Where("id = ? AND student_id = ?", id, studentID).
		UpdateColumns(columns)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrOwnershipMismatch
	}
	return r.FindByID(ctx, id)
}

// SetPaymentID links a payment to an enrollment owned by studentID.
func (r *GormEnrollmentRepository) SetPaymentID(ctx context.Context, id, studentID, paymentID uuid.UUID) error {
	result := database.Conn(ctx, r.db).
		Model(&models.CourseEnrollment{}).
		Where("id = ? AND student_id = ?", id, studentID).
		UpdateColumn("payment_id", paymentID)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return ErrOwnershipMismatch
	}
	return nil
}

func (r *GormEnrollmentRepository) ListByStudent(ctx context.Context, studentID uuid.UUID, page, limit int) ([]models.CourseEnrollment, int64, error) {
	return r.list(ctx, "student_id = ?", studentID, page, limit)
}

func (r *GormEnrollmentRepository) ListByCourse(ctx context.Context, courseID uuid.UUID, page, limit int) ([]models.CourseEnrollment, int64, error) {
	return r.list(ctx, "course_id = ?", courseID, page, limit)
}

func (r *GormEnrollmentRepository) list(ctx context.Context, cond string, arg interface{}, page, limit int) ([]models.CourseEnrollment, int64, error) {
	var enrollments []models.CourseEnrollment
	var total int64

	query := database.Conn(ctx, r.db).Model(&models.CourseEnrollment{}).Where(cond, arg)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}
	if err := query.
		Offset(offset(page, limit)).
		Limit(limit).
		Order("enrollment_date DESC").
		Find(&enrollments).Error; err != nil {
		return nil, 0, translate(err)
	}
	return enrollments, total, nil
}

func (r *GormEnrollmentRepository) CountByStatus(ctx context.Context, courseID uuid.UUID) (map[models.EnrollmentStatus]int64, error) {
	var rows []struct {
		Status models.EnrollmentStatus
		Total  int64
	}
	err := database.Conn(ctx, r.db).
		Model(&models.CourseEnrollment{}).
		Select("status, COUNT(*) AS total").
		Where("course_id = ?", courseID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}

	counts := make(map[models.EnrollmentStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

func (r *GormEnrollmentRepository) Totals(ctx context.Context, courseID uuid.UUID) (*EnrollmentTotals, error) {
	var row struct {
		Revenue           decimal.Decimal
		AverageCompletion float64
	}
	err := database.Conn(ctx, r.db).
		Model(&models.CourseEnrollment{}).
		Select("COALESCE(SUM(amount_paid), 0) AS revenue, COALESCE(AVG(progress_completion_percentage), 0) AS average_completion").
		Where("course_id = ? AND status <> ?", courseID, models.EnrollmentStatusCancelled).
		Scan(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return &EnrollmentTotals{Revenue: row.Revenue, AverageCompletion: row.AverageCompletion}, nil
}
