package models

import (
	"time"

	"github.com/google/uuid"
)

// Course is the read side of the course catalogue, owned by another service.
// Only the ownership and the embedded enrollment counters are used here.
type Course struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title             string    `gorm:"type:varchar(255)" json:"title"`
	MentorID          uuid.UUID `gorm:"type:uuid;index;not null" json:"mentor_id"`
	MaxStudents       *int      `gorm:"column:enrollment_max_students" json:"max_students"`
	CurrentEnrollment int       `gorm:"column:enrollment_current;not null;default:0" json:"current_enrollment"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CourseCapacity is the dedicated capacity counter for a course.
type CourseCapacity struct {
	CourseID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"course_id"`
	MaxStudents       *int      `json:"max_students"`
	CurrentEnrollment int       `gorm:"not null;default:0" json:"current_enrollment"`
	WaitlistCount     int       `gorm:"not null;default:0" json:"waitlist_count"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName pins the table name shared by migrations and raw statements.
func (CourseCapacity) TableName() string { return "course_capacities" }

// CapacitySource tells where a capacity snapshot was read from.
type CapacitySource string

const (
	CapacitySourceDedicated CapacitySource = "capacity_record"
	CapacitySourceCourse    CapacitySource = "course"
)

// CapacityView is the unified capacity shape returned to callers.
type CapacityView struct {
	CourseID          uuid.UUID      `json:"course_id"`
	MaxStudents       *int           `json:"max_students"`
	CurrentEnrollment int            `json:"current_enrollment"`
	WaitlistCount     int            `json:"waitlist_count"`
	AvailableSpots    *int           `json:"available_spots"`
	IsFull            bool           `json:"is_full"`
	Source            CapacitySource `json:"source"`
}

// NewCapacityView derives available_spots and is_full from the counters.
func NewCapacityView(courseID uuid.UUID, maxStudents *int, current, waitlist int, source CapacitySource) CapacityView {
	view := CapacityView{
		CourseID:          courseID,
		MaxStudents:       maxStudents,
		CurrentEnrollment: current,
		WaitlistCount:     waitlist,
		Source:            source,
	}
	if maxStudents != nil {
		spots := *maxStudents - current
		view.AvailableSpots = &spots
		view.IsFull = current >= *maxStudents
	}
	return view
}

// SetCapacityRequest sets or clears a course's seat limit.
type SetCapacityRequest struct {
	MaxStudents *int `json:"max_students" binding:"omitempty,gte=0"`
}
