package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/apperrors"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	"github.com/iPranay05/Skill-Prob-sub002/services"
)

// CapacitySetter updates a course's seat limit.
type CapacitySetter interface {
	SetCourseCapacity(ctx context.Context, actor models.Identity, courseID uuid.UUID, maxStudents *int) (*models.CapacityView, error)
}

// CourseController serves capacity and reporting for courses.
type CourseController struct {
	stats    services.StatsService
	capacity CapacitySetter
}

func NewCourseController(stats services.StatsService, capacity CapacitySetter) *CourseController {
	return &CourseController{stats: stats, capacity: capacity}
}

// GetCapacity handles GET /courses/:id/capacity.
func (cc *CourseController) GetCapacity(ctx *gin.Context) {
	courseID, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}

	view, err := cc.stats.GetCourseCapacity(ctx.Request.Context(), courseID)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, view)
}

// SetCapacity handles PUT /courses/:id/capacity (admin only).
func (cc *CourseController) SetCapacity(ctx *gin.Context) {
	actor, ok := identity(ctx)
	if !ok {
		return
	}
	courseID, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}
	var req models.SetCapacityRequest
	if !bindJSON(ctx, &req) {
		return
	}

	view, err := cc.capacity.SetCourseCapacity(ctx.Request.Context(), actor, courseID, req.MaxStudents)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, view)
}

// GetStats handles GET /courses/:id/stats.
func (cc *CourseController) GetStats(ctx *gin.Context) {
	actor, ok := identity(ctx)
	if !ok {
		return
	}
	courseID, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}

	stats, err := cc.stats.GetCourseStats(ctx.Request.Context(), actor, courseID)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, stats)
}
