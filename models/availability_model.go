package models

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotAvailable   SlotStatus = "available"
	SlotUnavailable SlotStatus = "unavailable"
)

// TutorAvailabilitySlot is one contiguous time range on a weekday during
// which a tutor is marked available or unavailable. Slots for a tutor on a
// weekday never overlap once MergeSlots has run.
type TutorAvailabilitySlot struct {
	ID      uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TutorID uuid.UUID `gorm:"not null;uniqueIndex:uq_tutor_slot" json:"tutor_id"`
	// Weekday uses Go's time.Weekday numbering: 0 = Sunday .. 6 = Saturday.
	Weekday     int        `gorm:"not null;uniqueIndex:uq_tutor_slot" json:"weekday"`
	StartMinute int        `gorm:"not null;uniqueIndex:uq_tutor_slot" json:"start_minute"`
	EndMinute   int        `gorm:"not null;uniqueIndex:uq_tutor_slot" json:"end_minute"`
	Status      SlotStatus `gorm:"size:20;not null;default:'available'" json:"status"`

	Tutor User `gorm:"foreignkey:TutorID" json:"tutor,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
