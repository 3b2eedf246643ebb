package models

import (
	"time"

	"github.com/google/uuid"
)

type Frequency string

const (
	FrequencyOnce     Frequency = "once"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
)

type Lesson struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TutorID   uuid.UUID `gorm:"not null" json:"tutor_id"`
	StudentID uuid.UUID `gorm:"not null" json:"student_id"`
	SubjectID uuid.UUID `gorm:"not null" json:"subject_id"`
	TermID    uuid.UUID `gorm:"not null" json:"term_id"`

	Frequency       Frequency `gorm:"size:20;not null" json:"frequency"`
	DurationMinutes int       `gorm:"not null" json:"duration_minutes"`
	StartDate       time.Time `gorm:"not null" json:"start_date"`
	// StartMinute is the minute of the day the lesson begins at, e.g. 600 = 10:00.
	StartMinute    int     `gorm:"not null" json:"start_minute"`
	PricePerLesson float64 `gorm:"type:numeric(10,2);not null" json:"price_per_lesson"`
	Notes          string  `gorm:"type:text" json:"notes"`

	Tutor   User    `gorm:"foreignkey:TutorID" json:"tutor,omitempty"`
	Student User    `gorm:"foreignkey:StudentID" json:"student,omitempty"`
	Subject Subject `gorm:"foreignkey:SubjectID" json:"subject,omitempty"`
	Term    Term    `gorm:"foreignkey:TermID" json:"term,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Weekday the lesson occurrences fall on, derived from the start date.
func (l *Lesson) Weekday() int {
	return int(l.StartDate.Weekday())
}

func (l *Lesson) EndMinute() int {
	return l.StartMinute + l.DurationMinutes
}
