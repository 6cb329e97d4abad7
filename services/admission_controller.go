package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/apperrors"
	"github.com/iPranay05/Skill-Prob-sub002/database"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	aws_pkg "github.com/iPranay05/Skill-Prob-sub002/pkg/aws"
	"github.com/iPranay05/Skill-Prob-sub002/repository"
	"go.uber.org/zap"
)

// Reservation is one seat taken by AdmitStudent.
type Reservation struct {
	CourseID  uuid.UUID
	StudentID uuid.UUID
	Capacity  models.CapacityView

	// NeedsRelease is set when the seat was committed outside the caller's
	// transaction and must be given back explicitly if the caller fails.
	NeedsRelease bool
	released     bool
}

// AdmissionController owns seat accounting for courses. A course has either
// a dedicated capacity record or falls back to the counters on the course
// row; both are mutated only through conditional increments.
type AdmissionController struct {
	capacity    repository.CapacityRepository
	courses     repository.CourseRepository
	enrollments repository.EnrollmentRepository
	retry       RetryPolicy
	metrics     aws_pkg.MetricsRecorder
	logger      *zap.Logger
}

func NewAdmissionController(
	capacity repository.CapacityRepository,
	courses repository.CourseRepository,
	enrollments repository.EnrollmentRepository,
	retry RetryPolicy,
	metrics aws_pkg.MetricsRecorder,
	logger *zap.Logger,
) *AdmissionController {
	return &AdmissionController{
		capacity:    capacity,
		courses:     courses,
		enrollments: enrollments,
		retry:       retry,
		metrics:     metrics,
		logger:      logger,
	}
}

// GetCourseCapacity reads the dedicated record, falling back to the course.
func (a *AdmissionController) GetCourseCapacity(ctx context.Context, courseID uuid.UUID) (*models.CapacityView, error) {
	record, err := a.capacity.Get(ctx, courseID)
	if err == nil {
		view := models.NewCapacityView(courseID, record.MaxStudents, record.CurrentEnrollment, record.WaitlistCount, models.CapacitySourceDedicated)
		return &view, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.External("Failed to read course capacity", err)
	}

	course, err := a.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Course not found")
		}
		return nil, apperrors.External("Failed to read course capacity", err)
	}
	view := models.NewCapacityView(courseID, course.MaxStudents, course.CurrentEnrollment, 0, models.CapacitySourceCourse)
	return &view, nil
}

// CheckNotEnrolled fails with apperrors.ErrAlreadyEnrolled when studentID
// already holds a live enrollment in courseID. The partial unique index on
// enrollments remains the guard against concurrent inserts.
func (a *AdmissionController) CheckNotEnrolled(ctx context.Context, courseID, studentID uuid.UUID) error {
	_, err := a.enrollments.FindLive(ctx, courseID, studentID)
	switch {
	case err == nil:
		a.reject(ctx, "already_enrolled")
		return apperrors.ErrAlreadyEnrolled
	case !errors.Is(err, repository.ErrNotFound):
		return apperrors.External("Failed to check existing enrollment", err)
	}
	return nil
}

// AdmitStudent takes one seat for studentID. It fails with
// apperrors.ErrAlreadyEnrolled when the student already holds a live
// enrollment and apperrors.ErrCourseFull when no seat is left.
func (a *AdmissionController) AdmitStudent(ctx context.Context, courseID, studentID uuid.UUID) (*Reservation, error) {
	start := time.Now()

	if err := a.CheckNotEnrolled(ctx, courseID, studentID); err != nil {
		return nil, err
	}

	var reservation *Reservation
	attempts, err := retryOnConflict(ctx, a.retry, func() error {
		var attemptErr error
		reservation, attemptErr = a.reserve(ctx, courseID)
		return attemptErr
	})
	if attempts > 1 {
		_ = a.metrics.RecordCount(ctx, aws_pkg.MetricAdmissionRetries, nil)
		a.logger.Info("Admission retried after concurrent update",
			zap.String("course_id", courseID.String()),
			zap.Int("attempts", attempts),
		)
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCapacityExceeded):
			_ = a.metrics.RecordCount(ctx, aws_pkg.MetricCapacityExceeded, nil)
			a.reject(ctx, "course_full")
			return nil, apperrors.ErrCourseFull
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("Course not found")
		case repository.IsRetryable(err):
			a.reject(ctx, "conflict")
			return nil, apperrors.External("Course capacity is busy, try again", err)
		}
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.External("Failed to reserve a seat", err)
	}

	reservation.StudentID = studentID
	_ = a.metrics.RecordLatency(ctx, aws_pkg.MetricAdmissionLatency, time.Since(start), nil)
	_ = a.metrics.RecordCount(ctx, aws_pkg.MetricEnrollmentAdmitted, nil)
	a.logger.Debug("Seat reserved",
		zap.String("course_id", courseID.String()),
		zap.String("student_id", studentID.String()),
		zap.Int("current_enrollment", reservation.Capacity.CurrentEnrollment),
		zap.String("source", string(reservation.Capacity.Source)),
	)
	return reservation, nil
}

func (a *AdmissionController) reserve(ctx context.Context, courseID uuid.UUID) (*Reservation, error) {
	inTx := database.InTransaction(ctx)

	record, err := a.capacity.Reserve(ctx, courseID)
	if err == nil {
		return &Reservation{
			CourseID:     courseID,
			Capacity:     models.NewCapacityView(courseID, record.MaxStudents, record.CurrentEnrollment, record.WaitlistCount, models.CapacitySourceDedicated),
			NeedsRelease: !(inTx && a.capacity.JoinsTransaction()),
		}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	course, err := a.courses.ReserveSeat(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return &Reservation{
		CourseID:     courseID,
		Capacity:     models.NewCapacityView(courseID, course.MaxStudents, course.CurrentEnrollment, 0, models.CapacitySourceCourse),
		NeedsRelease: !inTx,
	}, nil
}

// Release gives a reserved seat back. It is a no-op for reservations that
// rolled back with the caller's transaction.
func (a *AdmissionController) Release(ctx context.Context, r *Reservation) error {
	if r == nil || !r.NeedsRelease || r.released {
		return nil
	}

	var err error
	if r.Capacity.Source == models.CapacitySourceDedicated {
		err = a.capacity.Release(ctx, r.CourseID)
	} else {
		err = a.courses.ReleaseSeat(ctx, r.CourseID)
	}
	if err != nil {
		a.logger.Error("Failed to release seat",
			zap.String("course_id", r.CourseID.String()),
			zap.String("student_id", r.StudentID.String()),
			zap.Error(err),
		)
		return apperrors.External("Failed to release seat", err)
	}
	r.released = true
	a.logger.Info("Seat released", zap.String("course_id", r.CourseID.String()))
	return nil
}

// SetCourseCapacity creates or updates the dedicated capacity record. A nil
// maxStudents makes the course unlimited.
func (a *AdmissionController) SetCourseCapacity(ctx context.Context, actor models.Identity, courseID uuid.UUID, maxStudents *int) (*models.CapacityView, error) {
	if err := Require(actor, CapCapacityManagement); err != nil {
		return nil, err
	}
	if maxStudents != nil && *maxStudents < 0 {
		return nil, apperrors.Validation("max_students cannot be negative")
	}

	if _, err := a.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Course not found")
		}
		return nil, apperrors.External("Failed to update course capacity", err)
	}

	record, err := a.capacity.SetMaxStudents(ctx, courseID, maxStudents)
	if err != nil {
		if errors.Is(err, repository.ErrBelowEnrollment) {
			return nil, apperrors.Conflict("max_students cannot be below the current enrollment")
		}
		return nil, apperrors.External("Failed to update course capacity", err)
	}

	a.logger.Info("Course capacity updated",
		zap.String("course_id", courseID.String()),
		zap.Any("max_students", maxStudents),
		zap.String("updated_by", actor.UserID.String()),
	)
	view := models.NewCapacityView(courseID, record.MaxStudents, record.CurrentEnrollment, record.WaitlistCount, models.CapacitySourceDedicated)
	return &view, nil
}

func (a *AdmissionController) reject(ctx context.Context, reason string) {
	_ = a.metrics.RecordCount(ctx, aws_pkg.MetricEnrollmentRejected, map[string]string{"Reason": reason})
}
