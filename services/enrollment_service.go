package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/apperrors"
	"github.com/iPranay05/Skill-Prob-sub002/database"
	"github.com/iPranay05/Skill-Prob-sub002/events"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	"github.com/iPranay05/Skill-Prob-sub002/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultCurrency = "INR"
	idempotencyTTL  = 24 * time.Hour
)

// EnrollmentService defines the interface for enrollment lifecycle operations.
type EnrollmentService interface {
	EnrollStudent(ctx context.Context, actor models.Identity, req *models.EnrollRequest, idempotencyKey string) (*models.EnrollmentResult, error)
	GetEnrollment(ctx context.Context, actor models.Identity, id uuid.UUID) (*models.CourseEnrollment, error)
	ListMyEnrollments(ctx context.Context, actor models.Identity, page, limit int) ([]models.CourseEnrollment, int64, error)
	ListCourseEnrollments(ctx context.Context, actor models.Identity, courseID uuid.UUID, page, limit int) ([]models.CourseEnrollment, int64, error)
	UpdateEnrollmentStatus(ctx context.Context, actor models.Identity, id uuid.UUID, status models.EnrollmentStatus) (*models.CourseEnrollment, error)
	UpdateEnrollmentProgress(ctx context.Context, actor models.Identity, id uuid.UUID, update *models.ProgressUpdate) (*models.CourseEnrollment, error)
}

type enrollmentServiceImpl struct {
	tx          database.Transactor
	enrollments repository.EnrollmentRepository
	payments    repository.PaymentRepository
	courses     repository.CourseRepository
	admission   *AdmissionController
	ledger      *CouponLedger
	idempotency repository.IdempotencyStore
	publisher   events.Publisher
	logger      *zap.Logger
}

func NewEnrollmentService(
	tx database.Transactor,
	enrollments repository.EnrollmentRepository,
	payments repository.PaymentRepository,
	courses repository.CourseRepository,
	admission *AdmissionController,
	ledger *CouponLedger,
	idempotency repository.IdempotencyStore,
	publisher events.Publisher,
	logger *zap.Logger,
) EnrollmentService {
	return &enrollmentServiceImpl{
		tx:          tx,
		enrollments: enrollments,
		payments:    payments,
		courses:     courses,
		admission:   admission,
		ledger:      ledger,
		idempotency: idempotency,
		publisher:   publisher,
		logger:      logger,
	}
}

// EnrollStudent admits a student, applies an optional coupon, records the
// enrollment and, when money is owed, a pending payment. The store writes
// commit or roll back together; a seat taken outside the transaction is
// released again on failure.
func (s *enrollmentServiceImpl) EnrollStudent(ctx context.Context, actor models.Identity, req *models.EnrollRequest, idempotencyKey string) (*models.EnrollmentResult, error) {
	studentID := actor.UserID
	if req.StudentID != nil {
		studentID = *req.StudentID
	}
	if !CanActFor(actor, studentID, CapEnrollOthers) {
		return nil, apperrors.Forbidden("Not authorized to enroll another user")
	}
	if req.CourseID == uuid.Nil {
		return nil, apperrors.Validation("course_id is required")
	}
	if req.Amount.IsNegative() {
		return nil, apperrors.Validation("Amount cannot be negative")
	}

	idempotencyKey = scopedIdempotencyKey(actor, idempotencyKey)
	cached, err := s.replay(ctx, idempotencyKey, studentID, req.CourseID)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = defaultCurrency
	}
	couponCode := strings.ToUpper(strings.TrimSpace(req.CouponCode))
	source := req.EnrollmentSource
	if source == "" {
		source = "direct"
	}

	enrollmentID := uuid.New()
	var (
		reservation *Reservation
		application *models.CouponApplication
		enrollment  *models.CourseEnrollment
		payment     *models.Payment
	)

	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		amountPaid := req.Amount.Round(2)
		discount := decimal.Zero

		if couponCode != "" {
			// a repeat enrollment must not be reported as a coupon reuse
			if err := s.admission.CheckNotEnrolled(txCtx, req.CourseID, studentID); err != nil {
				return err
			}
			app, err := s.ledger.ApplyCoupon(txCtx, couponCode, studentID, &req.CourseID, amountPaid, &enrollmentID)
			if err != nil {
				return err
			}
			application = app
			amountPaid = app.FinalAmount
			discount = app.DiscountAmount
		}

		r, err := s.admission.AdmitStudent(txCtx, req.CourseID, studentID)
		if err != nil {
			return err
		}
		reservation = r

		enrollment = &models.CourseEnrollment{
			ID:               enrollmentID,
			CourseID:         req.CourseID,
			StudentID:        studentID,
			Status:           models.EnrollmentStatusActive,
			AmountPaid:       amountPaid,
			OriginalAmount:   req.Amount.Round(2),
			DiscountAmount:   discount,
			Currency:         currency,
			Progress:         models.Progress{CompletedSessions: []string{}},
			EnrollmentDate:   time.Now().UTC(),
			AccessExpiresAt:  req.AccessExpiresAt,
			EnrollmentSource: source,
			ReferralCode:     optionalString(req.ReferralCode),
			CouponCode:       optionalString(couponCode),
			SubscriptionID:   req.SubscriptionID,
		}

		if amountPaid.IsPositive() {
			paymentID := uuid.New()
			enrollment.PaymentID = &paymentID
			payment = &models.Payment{
				ID:             paymentID,
				StudentID:      studentID,
				CourseID:       &req.CourseID,
				EnrollmentID:   &enrollmentID,
				SubscriptionID: req.SubscriptionID,
				Amount:         amountPaid,
				Currency:       currency,
				Status:         models.PaymentStatusPending,
				Gateway:        req.Gateway,
				CouponCode:     enrollment.CouponCode,
				DiscountAmount: discount,
			}
		}

		if err := s.enrollments.Create(txCtx, enrollment); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.ErrAlreadyEnrolled
			}
			return apperrors.External("Failed to create enrollment", err)
		}
		if payment != nil {
			if err := s.payments.Create(txCtx, payment); err != nil {
				return apperrors.External("Failed to create payment", err)
			}
		}
		return nil
	})
	if err != nil {
		if relErr := s.admission.Release(ctx, reservation); relErr != nil {
			s.logger.Error("Seat left reserved after failed enrollment",
				zap.String("course_id", req.CourseID.String()),
				zap.String("student_id", studentID.String()),
				zap.Error(relErr),
			)
		}
		var appErr *apperrors.Error
		if !errors.As(err, &appErr) {
			s.logger.Error("Enrollment transaction failed", zap.String("course_id", req.CourseID.String()), zap.Error(err))
			return nil, apperrors.External("Failed to enroll student", err)
		}
		return nil, err
	}

	result := &models.EnrollmentResult{
		Enrollment: enrollment,
		Coupon:     application,
		Payment:    payment,
		Capacity:   &reservation.Capacity,
	}

	s.logger.Info("Student enrolled",
		zap.String("enrollment_id", enrollment.ID.String()),
		zap.String("course_id", enrollment.CourseID.String()),
		zap.String("student_id", studentID.String()),
		zap.String("amount_paid", enrollment.AmountPaid.StringFixed(2)),
	)

	s.publish(ctx, models.NewDomainEvent(models.EventEnrollmentCreated, enrollment.ID.String(), map[string]interface{}{
		"enrollment_id": enrollment.ID.String(),
		"course_id":     enrollment.CourseID.String(),
		"student_id":    studentID.String(),
		"amount_paid":   models.AmountString(enrollment.AmountPaid),
		"currency":      enrollment.Currency,
	}))
	if application != nil {
		s.ledger.PublishApplied(ctx, application, studentID, &req.CourseID)
	}
	s.remember(ctx, idempotencyKey, enrollment.ID)

	return result, nil
}

// scopedIdempotencyKey namespaces a client key by caller so two callers
// choosing the same key never see each other's enrollments.
func scopedIdempotencyKey(actor models.Identity, key string) string {
	if key == "" {
		return ""
	}
	return actor.UserID.String() + ":" + key
}

// replay returns the enrollment an idempotency key already produced. Reusing
// a key for a different student or course is a conflict.
func (s *enrollmentServiceImpl) replay(ctx context.Context, key string, studentID, courseID uuid.UUID) (*models.EnrollmentResult, error) {
	if key == "" || s.idempotency == nil {
		return nil, nil
	}
	value, err := s.idempotency.Get(ctx, key)
	if err != nil || value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, nil
	}
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		s.logger.Warn("Idempotency key points at a missing enrollment", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	if enrollment.StudentID != studentID || enrollment.CourseID != courseID {
		return nil, apperrors.Conflict("Idempotency key was already used for a different enrollment")
	}
	s.logger.Info("Replaying enrollment for idempotency key", zap.String("key", key))
	return &models.EnrollmentResult{Enrollment: enrollment}, nil
}

func (s *enrollmentServiceImpl) remember(ctx context.Context, key string, id uuid.UUID) {
	if key == "" || s.idempotency == nil {
		return
	}
	if err := s.idempotency.Set(ctx, key, id.String(), idempotencyTTL); err != nil {
		s.logger.Warn("Failed to store idempotency key", zap.String("key", key), zap.Error(err))
	}
}

func (s *enrollmentServiceImpl) GetEnrollment(ctx context.Context, actor models.Identity, id uuid.UUID) (*models.CourseEnrollment, error) {
	enrollment, err := s.findEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.UserID == enrollment.StudentID || HasCapability(actor.Role, CapStatsViewing) {
		return enrollment, nil
	}
	mentorID, err := s.mentorOf(ctx, enrollment.CourseID)
	if err != nil {
		return nil, err
	}
	if !CanViewCourse(actor, mentorID) {
		return nil, apperrors.Forbidden("Not authorized to view this enrollment")
	}
	return enrollment, nil
}

func (s *enrollmentServiceImpl) ListMyEnrollments(ctx context.Context, actor models.Identity, page, limit int) ([]models.CourseEnrollment, int64, error) {
	enrollments, total, err := s.enrollments.ListByStudent(ctx, actor.UserID, page, limit)
	if err != nil {
		return nil, 0, apperrors.External("Failed to fetch enrollments", err)
	}
	return enrollments, total, nil
}

func (s *enrollmentServiceImpl) ListCourseEnrollments(ctx context.Context, actor models.Identity, courseID uuid.UUID, page, limit int) ([]models.CourseEnrollment, int64, error) {
	mentorID, err := s.mentorOf(ctx, courseID)
	if err != nil {
		return nil, 0, err
	}
	if !CanViewCourse(actor, mentorID) {
		return nil, 0, apperrors.Forbidden("Not authorized to view this course")
	}
	enrollments, total, err := s.enrollments.ListByCourse(ctx, courseID, page, limit)
	if err != nil {
		return nil, 0, apperrors.External("Failed to fetch enrollments", err)
	}
	return enrollments, total, nil
}

// UpdateEnrollmentStatus moves an enrollment to completed, cancelled or
// expired. Seats are not given back: capacity counts admissions.
func (s *enrollmentServiceImpl) UpdateEnrollmentStatus(ctx context.Context, actor models.Identity, id uuid.UUID, status models.EnrollmentStatus) (*models.CourseEnrollment, error) {
	if !status.Valid() {
		return nil, apperrors.Validation("Invalid enrollment status")
	}
	if status == models.EnrollmentStatusActive {
		return nil, apperrors.Validation("Enrollment cannot be reactivated")
	}

	enrollment, err := s.findEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	var mentor *uuid.UUID
	mentorID, err := s.mentorOf(ctx, enrollment.CourseID)
	switch {
	case err == nil:
		mentor = &mentorID
	case apperrors.KindOf(err) != apperrors.KindNotFound:
		return nil, err
	}
	if !CanUpdateEnrollmentStatus(actor, enrollment, mentor) {
		return nil, apperrors.Forbidden("Not authorized to update this enrollment")
	}
	if enrollment.Status == status {
		return enrollment, nil
	}

	updated, err := s.enrollments.UpdateStatus(ctx, id, status)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("Enrollment not found")
		case errors.Is(err, repository.ErrDuplicate):
			return nil, apperrors.ErrAlreadyEnrolled
		}
		return nil, apperrors.External("Failed to update enrollment", err)
	}

	s.logger.Info("Enrollment status updated",
		zap.String("enrollment_id", id.String()),
		zap.String("from", string(enrollment.Status)),
		zap.String("to", string(status)),
		zap.String("updated_by", actor.UserID.String()),
	)
	s.publish(ctx, models.NewDomainEvent(models.EventEnrollmentStatusChanged, id.String(), map[string]interface{}{
		"enrollment_id": id.String(),
		"course_id":     updated.CourseID.String(),
		"student_id":    updated.StudentID.String(),
		"from":          string(enrollment.Status),
		"to":            string(status),
	}))
	return updated, nil
}

// UpdateEnrollmentProgress replaces the completed-session set and the
// completion percentage and adds the reported time to the running total.
func (s *enrollmentServiceImpl) UpdateEnrollmentProgress(ctx context.Context, actor models.Identity, id uuid.UUID, update *models.ProgressUpdate) (*models.CourseEnrollment, error) {
	if update.CompletionPercentage < 0 || update.CompletionPercentage > 100 {
		return nil, apperrors.Validation("completion_percentage must be between 0 and 100")
	}
	if update.TimeSpent < 0 {
		return nil, apperrors.Validation("time_spent cannot be negative")
	}
	if update.TotalSessions != nil && *update.TotalSessions < 0 {
		return nil, apperrors.Validation("total_sessions cannot be negative")
	}

	enrollment, err := s.findEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	if enrollment.StudentID != actor.UserID {
		return nil, apperrors.Forbidden("Only the enrolled student can update progress")
	}

	normalized := *update
	normalized.CompletedSessions = dedupe(update.CompletedSessions)

	updated, err := s.enrollments.ApplyProgress(ctx, id, actor.UserID, normalized)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("Enrollment not found")
		case errors.Is(err, repository.ErrOwnershipMismatch):
			return nil, apperrors.Forbidden("Only the enrolled student can update progress")
		}
		return nil, apperrors.External("Failed to update progress", err)
	}
	return updated, nil
}

func (s *enrollmentServiceImpl) findEnrollment(ctx context.Context, id uuid.UUID) (*models.CourseEnrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Enrollment not found")
		}
		return nil, apperrors.External("Failed to fetch enrollment", err)
	}
	return enrollment, nil
}

func (s *enrollmentServiceImpl) mentorOf(ctx context.Context, courseID uuid.UUID) (uuid.UUID, error) {
	mentorID, err := s.courses.FindMentorID(ctx, courseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return uuid.Nil, apperrors.NotFound("Course not found")
		}
		return uuid.Nil, apperrors.External("Failed to fetch course", err)
	}
	return mentorID, nil
}

func (s *enrollmentServiceImpl) publish(ctx context.Context, event models.DomainEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event", zap.String("event_type", event.EventType), zap.Error(err))
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
