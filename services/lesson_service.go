package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nekesa/tutorhub/models"
)

// LessonService orchestrates a lesson's life: creation expands occurrences
// and books tutor time, update requests flag future occurrences, resolution
// re-books availability and regenerates the calendar. Every orchestration
// runs in a single transaction. Now is injectable so tests control "today".
type LessonService struct {
	Store Store
	Now   func() time.Time
}

func NewLessonService(store Store) *LessonService {
	return &LessonService{Store: store, Now: time.Now}
}

func (s *LessonService) today() time.Time {
	return DayOf(s.Now())
}

type CreateLessonInput struct {
	TutorID         uuid.UUID
	StudentID       uuid.UUID
	SubjectID       uuid.UUID
	TermID          uuid.UUID
	Frequency       models.Frequency
	DurationMinutes int
	StartDate       time.Time
	StartMinute     int
	PricePerLesson  float64
	Notes           string
}

// CreationResult describes every entity a successful CreateLesson wrote, so
// callers and tests can assert on the full effect set.
type CreationResult struct {
	Lesson      *models.Lesson
	Occurrences []models.LessonOccurrence
	BookedSlot  *models.TutorAvailabilitySlot
}

// CreateLesson validates the definition, expands its occurrences through the
// term end and books the tutor's weekly window, all-or-nothing. A start time
// is always required; demo backfill lives elsewhere.
func (s *LessonService) CreateLesson(in CreateLessonInput) (*CreationResult, error) {
	if in.DurationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}
	if in.PricePerLesson <= 0 {
		return nil, ErrInvalidPrice
	}
	if _, err := FrequencyStep(in.Frequency); err != nil {
		return nil, err
	}

	today := s.today()
	var result CreationResult
	err := s.Store.WithinTx(func(tx Store) error {
		term, err := tx.GetTerm(in.TermID)
		if err != nil {
			return err
		}
		start := DayOf(in.StartDate)
		termEnd := DayOf(term.EndDate)
		if start.Before(today) || start.Before(DayOf(term.StartDate)) || start.After(termEnd) {
			return ErrInvalidStartDate
		}

		taken, err := tx.HasActiveLesson(in.TutorID, in.StudentID, in.SubjectID)
		if err != nil {
			return err
		}
		if taken {
			return ErrLessonExists
		}

		plans, err := ExpandOccurrences(start, termEnd, in.Frequency)
		if err != nil {
			return err
		}

		slot, err := tx.BookSlot(in.TutorID, int(start.Weekday()), in.StartMinute, in.StartMinute+in.DurationMinutes)
		if err != nil {
			return err
		}

		lesson := &models.Lesson{
			TutorID:         in.TutorID,
			StudentID:       in.StudentID,
			SubjectID:       in.SubjectID,
			TermID:          in.TermID,
			Frequency:       in.Frequency,
			DurationMinutes: in.DurationMinutes,
			StartDate:       start,
			StartMinute:     in.StartMinute,
			PricePerLesson:  in.PricePerLesson,
			Notes:           in.Notes,
		}
		if err := tx.CreateLesson(lesson); err != nil {
			return err
		}

		occurrences := make([]models.LessonOccurrence, len(plans))
		for i, plan := range plans {
			occurrences[i] = models.LessonOccurrence{
				LessonID:    lesson.ID,
				Date:        plan.Date,
				StartMinute: in.StartMinute,
				Status:      plan.Status,
			}
		}
		if err := tx.CreateOccurrences(occurrences); err != nil {
			return err
		}

		result = CreationResult{Lesson: lesson, Occurrences: occurrences, BookedSlot: slot}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitUpdateRequest records a tutor's or student's ask to change a lesson.
// Only one unhandled request may exist per lesson; future scheduled
// occurrences flip to pending to flag that resolution is awaited.
func (s *LessonService) SubmitUpdateRequest(lessonID uuid.UUID, requestedBy string, option models.UpdateOption, details string) (*models.LessonUpdateRequest, error) {
	switch option {
	case models.UpdateChangeTutor, models.UpdateChangeDayTime, models.UpdateCancelLessons,
		models.UpdateChangeFrequency, models.UpdateChangeDuration:
	default:
		return nil, fmt.Errorf("unknown update option %q", option)
	}

	today := s.today()
	var req *models.LessonUpdateRequest
	err := s.Store.WithinTx(func(tx Store) error {
		lesson, err := tx.GetLesson(lessonID)
		if err != nil {
			return err
		}
		open, err := tx.UnhandledUpdateRequest(lesson.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return ErrDuplicateRequest
		}

		req = &models.LessonUpdateRequest{
			LessonID:    lesson.ID,
			Option:      option,
			Details:     details,
			RequestedBy: requestedBy,
		}
		if err := tx.CreateUpdateRequest(req); err != nil {
			return err
		}
		_, err = tx.MarkScheduledOccurrencesPending(lesson.ID, today)
		return err
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// CancelResult describes what ResolveCancelLessons changed.
type CancelResult struct {
	Lesson         *models.Lesson
	CancelledCount int64
}

// ResolveCancelLessons terminates a lesson: every occurrence dated today or
// later becomes cancelled, the tutor's window is released and re-merged, and
// the open update request (when present) is closed.
func (s *LessonService) ResolveCancelLessons(lessonID uuid.UUID) (*CancelResult, error) {
	today := s.today()
	var result CancelResult
	err := s.Store.WithinTx(func(tx Store) error {
		lesson, err := tx.GetLesson(lessonID)
		if err != nil {
			return err
		}
		open, err := tx.UnhandledUpdateRequest(lesson.ID)
		if err != nil {
			return err
		}

		cancelled, err := tx.CancelOccurrencesFrom(lesson.ID, today)
		if err != nil {
			return err
		}
		if err := tx.ReleaseSlot(lesson.TutorID, lesson.Weekday(), lesson.StartMinute, lesson.EndMinute()); err != nil {
			return err
		}
		if err := tx.MergeSlots(lesson.TutorID, lesson.Weekday()); err != nil {
			return err
		}

		lesson.Notes = appendNote(lesson.Notes, fmt.Sprintf("Lessons cancelled on %s.", today.Format("2006-01-02")))
		if err := tx.SaveLesson(lesson); err != nil {
			return err
		}
		if open != nil {
			if err := tx.MarkRequestHandled(open.ID); err != nil {
				return err
			}
		}
		if err := tx.FlagStudentNotification(lesson.StudentID); err != nil {
			return err
		}

		result = CancelResult{Lesson: lesson, CancelledCount: cancelled}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// RescheduleInput carries the replacement values for a change-tutor or
// change-day/time resolution. Nil fields keep the lesson's current value.
type RescheduleInput struct {
	NewTutorID     *uuid.UUID
	NewStartDate   *time.Time
	NewStartMinute *int
	NewFrequency   *models.Frequency
	NewDuration    *int
}

// ResolveChangeTutorOrDayTime moves a lesson to a new tutor, day, time,
// frequency or duration. The replacement window is booked before the old one
// is released, so a full calendar on the new tutor surfaces
// ErrNoAvailabilityFound with the original booking intact; an overlap with
// the lesson's own booking releases first instead, the transaction keeping
// the all-or-nothing guarantee. When no pending future occurrence remains the
// open request is auto-closed and ErrNothingToReschedule reported; callers
// treat that as informational, not fatal.
func (s *LessonService) ResolveChangeTutorOrDayTime(lessonID uuid.UUID, in RescheduleInput) (*models.Lesson, error) {
	today := s.today()
	var updated *models.Lesson
	var nothingLeft bool
	err := s.Store.WithinTx(func(tx Store) error {
		lesson, err := tx.GetLesson(lessonID)
		if err != nil {
			return err
		}
		open, err := tx.UnhandledUpdateRequest(lesson.ID)
		if err != nil {
			return err
		}

		next, err := tx.NextPendingOccurrence(lesson.ID, today)
		if err != nil {
			return err
		}
		if next == nil {
			nothingLeft = true
			if open != nil {
				return tx.MarkRequestHandled(open.ID)
			}
			return nil
		}

		newTutor := lesson.TutorID
		if in.NewTutorID != nil {
			newTutor = *in.NewTutorID
		}
		newStart := DayOf(next.Date)
		if in.NewStartDate != nil {
			newStart = DayOf(*in.NewStartDate)
		}
		newMinute := lesson.StartMinute
		if in.NewStartMinute != nil {
			newMinute = *in.NewStartMinute
		}
		newFreq := lesson.Frequency
		if in.NewFrequency != nil {
			newFreq = *in.NewFrequency
		}
		newDuration := lesson.DurationMinutes
		if in.NewDuration != nil {
			newDuration = *in.NewDuration
		}
		if newDuration <= 0 {
			return ErrInvalidDuration
		}
		if _, err := FrequencyStep(newFreq); err != nil {
			return err
		}

		term, err := tx.GetTerm(lesson.TermID)
		if err != nil {
			return err
		}
		termEnd := DayOf(term.EndDate)
		if newStart.Before(today) || newStart.After(termEnd) {
			return ErrInvalidStartDate
		}

		// Book first, release second: a failed booking must not strand the
		// lesson with neither window. When the new window overlaps the
		// lesson's own booking (same tutor and weekday, as in a frequency or
		// duration change) the order inverts, because the lesson's own
		// unavailable row blocks the rebooking; the surrounding transaction
		// still rolls the release back if the booking fails.
		overlapsOwn := newTutor == lesson.TutorID &&
			int(newStart.Weekday()) == lesson.Weekday() &&
			newMinute < lesson.EndMinute() && lesson.StartMinute < newMinute+newDuration
		if overlapsOwn {
			if err := tx.ReleaseSlot(lesson.TutorID, lesson.Weekday(), lesson.StartMinute, lesson.EndMinute()); err != nil {
				return err
			}
			if err := tx.MergeSlots(lesson.TutorID, lesson.Weekday()); err != nil {
				return err
			}
			if _, err := tx.BookSlot(newTutor, int(newStart.Weekday()), newMinute, newMinute+newDuration); err != nil {
				return err
			}
		} else {
			if _, err := tx.BookSlot(newTutor, int(newStart.Weekday()), newMinute, newMinute+newDuration); err != nil {
				return err
			}
			if err := tx.ReleaseSlot(lesson.TutorID, lesson.Weekday(), lesson.StartMinute, lesson.EndMinute()); err != nil {
				return err
			}
			if err := tx.MergeSlots(lesson.TutorID, lesson.Weekday()); err != nil {
				return err
			}
		}

		if err := tx.DeleteOccurrencesFrom(lesson.ID, DayOf(next.Date)); err != nil {
			return err
		}
		plans, err := ExpandOccurrences(newStart, termEnd, newFreq)
		if err != nil {
			return err
		}
		occurrences := make([]models.LessonOccurrence, len(plans))
		for i, plan := range plans {
			occurrences[i] = models.LessonOccurrence{
				LessonID:    lesson.ID,
				Date:        plan.Date,
				StartMinute: newMinute,
				Status:      plan.Status,
			}
		}
		if err := tx.CreateOccurrences(occurrences); err != nil {
			return err
		}

		lesson.TutorID = newTutor
		lesson.StartDate = newStart
		lesson.StartMinute = newMinute
		lesson.Frequency = newFreq
		lesson.DurationMinutes = newDuration
		lesson.Notes = ""
		if err := tx.SaveLesson(lesson); err != nil {
			return err
		}
		if open != nil {
			if err := tx.MarkRequestHandled(open.ID); err != nil {
				return err
			}
		}
		if err := tx.FlagStudentNotification(lesson.StudentID); err != nil {
			return err
		}

		updated = lesson
		return nil
	})
	if err != nil {
		return nil, err
	}
	if nothingLeft {
		return nil, ErrNothingToReschedule
	}
	return updated, nil
}

// SweepOccurrenceStatuses runs the lazy upkeep pass; callers invoke it
// before reading "next pending occurrence" style views and the cron job
// runs it periodically.
func (s *LessonService) SweepOccurrenceStatuses() (int64, error) {
	return s.Store.SweepOccurrenceStatuses(s.today())
}

// AllAvailability returns the read-only availability board.
func (s *LessonService) AllAvailability() ([]WeekdayAvailability, error) {
	slots, err := s.Store.ListAvailableSlots()
	if err != nil {
		return nil, err
	}
	return BuildAvailabilityBoard(slots), nil
}

func appendNote(notes, extra string) string {
	if notes == "" {
		return extra
	}
	return notes + "\n" + extra
}
