package models

import (
	"time"

	"github.com/google/uuid"
)

type OccurrenceStatus string

const (
	OccurrencePending   OccurrenceStatus = "pending"
	OccurrenceScheduled OccurrenceStatus = "scheduled"
	OccurrenceCancelled OccurrenceStatus = "cancelled"
	OccurrenceCompleted OccurrenceStatus = "completed"
	OccurrenceConfirmed OccurrenceStatus = "confirmed"
	OccurrenceRejected  OccurrenceStatus = "rejected"
)

// LessonOccurrence is one concrete calendar instance of a recurring lesson.
type LessonOccurrence struct {
	ID       uuid.UUID        `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	LessonID uuid.UUID        `gorm:"not null;index" json:"lesson_id"`
	Date     time.Time        `gorm:"not null" json:"date"`
	// StartMinute mirrors the lesson's minute of day at generation time so the
	// occurrence stays intact if the lesson is later rescheduled.
	StartMinute int              `gorm:"not null" json:"start_minute"`
	Status      OccurrenceStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	Feedback    *string          `gorm:"type:text" json:"feedback"`
	Invoiced    bool             `gorm:"default:false" json:"invoiced"`

	Lesson Lesson `gorm:"foreignkey:LessonID" json:"lesson,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
