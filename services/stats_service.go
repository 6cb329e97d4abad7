package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/apperrors"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	"github.com/iPranay05/Skill-Prob-sub002/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StatsService aggregates read-only reports.
type StatsService interface {
	GetCourseStats(ctx context.Context, actor models.Identity, courseID uuid.UUID) (*models.EnrollmentStats, error)
	GetCourseCapacity(ctx context.Context, courseID uuid.UUID) (*models.CapacityView, error)
	GetCouponStats(ctx context.Context, actor models.Identity, code string) (*models.CouponStats, error)
}

type statsServiceImpl struct {
	enrollments repository.EnrollmentRepository
	courses     repository.CourseRepository
	coupons     repository.CouponRepository
	usages      repository.CouponUsageRepository
	admission   *AdmissionController
	logger      *zap.Logger
}

func NewStatsService(
	enrollments repository.EnrollmentRepository,
	courses repository.CourseRepository,
	coupons repository.CouponRepository,
	usages repository.CouponUsageRepository,
	admission *AdmissionController,
	logger *zap.Logger,
) StatsService {
	return &statsServiceImpl{
		enrollments: enrollments,
		courses:     courses,
		coupons:     coupons,
		usages:      usages,
		admission:   admission,
		logger:      logger,
	}
}

// GetCourseStats runs the status counts, revenue totals and capacity read
// concurrently.
func (s *statsServiceImpl) GetCourseStats(ctx context.Context, actor models.Identity, courseID uuid.UUID) (*models.EnrollmentStats, error) {
	mentorID, err := s.courses.FindMentorID(ctx, courseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Course not found")
		}
		return nil, apperrors.External("Failed to fetch course", err)
	}
	if !CanViewCourse(actor, mentorID) {
		return nil, apperrors.Forbidden("Not authorized to view course statistics")
	}

	var (
		counts   map[models.EnrollmentStatus]int64
		totals   *repository.EnrollmentTotals
		capacity *models.CapacityView
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = s.enrollments.CountByStatus(gctx, courseID)
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = s.enrollments.Totals(gctx, courseID)
		return err
	})
	g.Go(func() error {
		var err error
		capacity, err = s.admission.GetCourseCapacity(gctx, courseID)
		return err
	})
	if err := g.Wait(); err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		s.logger.Error("Failed to compute course stats", zap.String("course_id", courseID.String()), zap.Error(err))
		return nil, apperrors.External("Failed to compute course stats", err)
	}

	stats := &models.EnrollmentStats{
		CourseID:          courseID,
		ByStatus:          counts,
		Revenue:           totals.Revenue,
		AverageCompletion: totals.AverageCompletion,
		Capacity:          *capacity,
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

func (s *statsServiceImpl) GetCourseCapacity(ctx context.Context, courseID uuid.UUID) (*models.CapacityView, error) {
	return s.admission.GetCourseCapacity(ctx, courseID)
}

func (s *statsServiceImpl) GetCouponStats(ctx context.Context, actor models.Identity, code string) (*models.CouponStats, error) {
	if err := Require(actor, CapStatsViewing); err != nil {
		return nil, err
	}
	coupon, err := s.coupons.FindByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, couponLookupError(err)
	}
	totals, err := s.usages.Totals(ctx, coupon.ID)
	if err != nil {
		return nil, apperrors.External("Failed to compute coupon stats", err)
	}
	return &models.CouponStats{
		CouponID:      coupon.ID,
		Code:          coupon.Code,
		UsedCount:     coupon.UsedCount,
		UsageLimit:    coupon.UsageLimit,
		UsageRows:     totals.Rows,
		TotalDiscount: totals.TotalDiscount,
		TotalRevenue:  totals.TotalRevenue,
	}, nil
}
