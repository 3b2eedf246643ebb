package models

import (
	"time"

	"github.com/google/uuid"
)

type UpdateOption string

const (
	UpdateChangeTutor     UpdateOption = "change_tutor"
	UpdateChangeDayTime   UpdateOption = "change_day_time"
	UpdateCancelLessons   UpdateOption = "cancel_lessons"
	UpdateChangeFrequency UpdateOption = "change_frequency"
	UpdateChangeDuration  UpdateOption = "change_duration"
)

// LessonUpdateRequest is a pending ask from a tutor or student to change an
// aspect of an existing lesson. At most one unhandled request exists per
// lesson; a partial unique index in database.Migrate enforces it.
type LessonUpdateRequest struct {
	ID          uuid.UUID    `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	LessonID    uuid.UUID    `gorm:"not null;index" json:"lesson_id"`
	Option      UpdateOption `gorm:"size:30;not null" json:"option"`
	Details     string       `gorm:"type:text" json:"details"`
	RequestedBy string       `gorm:"size:20;not null" json:"requested_by"`
	Handled     bool         `gorm:"not null;default:false" json:"handled"`

	Lesson Lesson `gorm:"foreignkey:LessonID" json:"lesson,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
