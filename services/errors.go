package services

import "errors"

var (
	ErrInvalidFrequency    = errors.New("invalid lesson frequency")
	ErrInvalidDuration     = errors.New("lesson duration must be greater than zero")
	ErrInvalidPrice        = errors.New("price per lesson must be greater than zero")
	ErrInvalidStartDate    = errors.New("start date falls outside the term")
	ErrNoAvailabilityFound = errors.New("tutor has no matching free interval")
	ErrLessonExists        = errors.New("an active lesson for this tutor, student and subject already exists")
	ErrDuplicateRequest    = errors.New("an unhandled update request already exists for this lesson")
	ErrNothingToReschedule = errors.New("no pending occurrence left to reschedule")
	ErrNothingToInvoice    = errors.New("student has no uninvoiced completed occurrences")
	ErrNotFound            = errors.New("record not found")
)
