package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/iPranay05/Skill-Prob-sub002/apperrors"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	"github.com/iPranay05/Skill-Prob-sub002/services"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// EnrollmentController handles HTTP requests for enrollments.
type EnrollmentController struct {
	enrollmentService services.EnrollmentService
}

func NewEnrollmentController(enrollmentService services.EnrollmentService) *EnrollmentController {
	return &EnrollmentController{enrollmentService: enrollmentService}
}

// Enroll handles POST /enrollments.
func (ec *EnrollmentController) Enroll(ctx *gin.Context) {
	actor, ok := identity(ctx)
	if !ok {
		return
	}
	var req models.EnrollRequest
	if !bindJSON(ctx, &req) {
		return
	}

	result, err := ec.enrollmentService.EnrollStudent(ctx.Request.Context(), actor, &req, ctx.GetHeader(IdempotencyKeyHeader))
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, result)
}

// GetEnrollment handles GET /enrollments/:id.
func (ec *EnrollmentController) GetEnrollment(ctx *gin.Context) {
	actor, ok := identity(ctx)
	if !ok {
		return
	}
	id, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}

	enrollment, err := ec.enrollmentService.GetEnrollment(ctx.Request.Context(), actor, id)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"enrollment": enrollment})
}

// ListMyEnrollments handles GET /enrollments.
func (ec *EnrollmentController) ListMyEnrollments(ctx *gin.Context) {
	actor, ok := identity(ctx)
	if !ok {
		return
	}
	page, limit := parsePaginationParams(ctx)

	enrollments, total, err := ec.enrollmentService.ListMyEnrollments(ctx.Request.Context(), actor, page, limit)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"enrollments": enrollments, "meta": pageMeta(page, limit, total)})
}

// ListCourseEnrollments handles GET /courses/:id/enrollments.
func (ec *EnrollmentController) ListCourseEnrollments(ctx *gin.Context) {
	actor, ok := identity(ctx)
	if !ok {
		return
	}
	courseID, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}
	page, limit := parsePaginationParams(ctx)

	enrollments, total, err := ec.enrollmentService.ListCourseEnrollments(ctx.Request.Context(), actor, courseID, page, limit)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"enrollments": enrollments, "meta": pageMeta(page, limit, total)})
}

// UpdateStatus handles PATCH /enrollments/:id/status.
func (ec *EnrollmentController) UpdateStatus(ctx *gin.Context) {
	actor, ok := identity(ctx)
	if !ok {
		return
	}
	id, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}
	var req models.UpdateEnrollmentStatusRequest
	if !bindJSON(ctx, &req) {
		return
	}

	enrollment, err := ec.enrollmentService.UpdateEnrollmentStatus(ctx.Request.Context(), actor, id, req.Status)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"enrollment": enrollment})
}

// UpdateProgress handles PATCH /enrollments/:id/progress.
func (ec *EnrollmentController) UpdateProgress(ctx *gin.Context) {
	actor, ok := identity(ctx)
	if !ok {
		return
	}
	id, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}
	var req models.ProgressUpdate
	if !bindJSON(ctx, &req) {
		return
	}

	enrollment, err := ec.enrollmentService.UpdateEnrollmentProgress(ctx.Request.Context(), actor, id, &req)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"enrollment": enrollment})
}
