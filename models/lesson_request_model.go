package models

import (
	"time"

	"github.com/google/uuid"
)

// LessonRequest is a student's pre-assignment ask for lessons in a subject.
// An admin assigning a tutor turns it into a Lesson; otherwise it terminates
// as cancelled or rejected.
type LessonRequest struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	StudentID uuid.UUID `gorm:"not null" json:"student_id"`
	SubjectID uuid.UUID `gorm:"not null" json:"subject_id"`
	TermID    uuid.UUID `gorm:"not null" json:"term_id"`

	StartDate       time.Time        `gorm:"not null" json:"start_date"`
	StartMinute     int              `gorm:"not null" json:"start_minute"`
	Frequency       Frequency        `gorm:"size:20;not null" json:"frequency"`
	DurationMinutes int              `gorm:"not null" json:"duration_minutes"`
	Status          OccurrenceStatus `gorm:"size:20;not null;default:'pending'" json:"status"`

	Student User    `gorm:"foreignkey:StudentID" json:"student,omitempty"`
	Subject Subject `gorm:"foreignkey:SubjectID" json:"subject,omitempty"`
	Term    Term    `gorm:"foreignkey:TermID" json:"term,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
