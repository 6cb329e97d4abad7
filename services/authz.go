package services

import (
	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/apperrors"
	"github.com/iPranay05/Skill-Prob-sub002/models"
)

// Capability is an action guarded by role.
type Capability string

const (
	CapEnrollmentStatusUpdate Capability = "enrollment.status.update"
	CapCouponManagement       Capability = "coupon.manage"
	CapStatsViewing           Capability = "stats.view"
	CapEnrollOthers           Capability = "enrollment.create.others"
	CapPaymentManagement      Capability = "payment.manage"
	CapCapacityManagement     Capability = "capacity.manage"
)

// capabilityTable lists the roles that hold a capability outright. Some
// capabilities are also granted through ownership (see the Can* helpers).
var capabilityTable = map[Capability][]models.Role{
	CapEnrollmentStatusUpdate: {models.RoleAdmin, models.RoleSuperAdmin},
	CapCouponManagement:       {models.RoleAdmin, models.RoleSuperAdmin},
	CapStatsViewing:           {models.RoleAdmin, models.RoleSuperAdmin},
	CapEnrollOthers:           {models.RoleAdmin, models.RoleSuperAdmin},
	CapPaymentManagement:      {models.RoleAdmin, models.RoleSuperAdmin},
	CapCapacityManagement:     {models.RoleAdmin, models.RoleSuperAdmin},
}

// HasCapability reports whether role holds c through the table alone.
func HasCapability(role models.Role, c Capability) bool {
	for _, r := range capabilityTable[c] {
		if r == role {
			return true
		}
	}
	return false
}

// Require returns an authorization error unless id holds c.
func Require(id models.Identity, c Capability) error {
	if HasCapability(id.Role, c) {
		return nil
	}
	return apperrors.Forbidden("Insufficient permissions")
}

// CanUpdateEnrollmentStatus: the enrolled student, the course's mentor, or a
// role holding the capability. A nil mentorID means the course has no known
// mentor.
func CanUpdateEnrollmentStatus(id models.Identity, enrollment *models.CourseEnrollment, mentorID *uuid.UUID) bool {
	if HasCapability(id.Role, CapEnrollmentStatusUpdate) {
		return true
	}
	if id.UserID == enrollment.StudentID {
		return true
	}
	return mentorID != nil && id.Role == models.RoleMentor && id.UserID == *mentorID
}

// CanViewCourse: the course's mentor or a role allowed to view stats.
func CanViewCourse(id models.Identity, mentorID uuid.UUID) bool {
	if HasCapability(id.Role, CapStatsViewing) {
		return true
	}
	return id.Role == models.RoleMentor && id.UserID == mentorID
}

// CanActFor: a caller acting on their own behalf, or one allowed to act for
// others through c.
func CanActFor(id models.Identity, subject uuid.UUID, c Capability) bool {
	return id.UserID == subject || HasCapability(id.Role, c)
}
