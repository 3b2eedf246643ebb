package services

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nekesa/tutorhub/models"
)

// fakeStore is an in-memory Store; WithinTx just runs the function against
// the same state, which is enough because the coordinator never relies on
// rollback in the happy paths these tests walk.
type fakeStore struct {
	lessons     map[uuid.UUID]*models.Lesson
	terms       map[uuid.UUID]*models.Term
	occurrences []*models.LessonOccurrence
	slots       []*models.TutorAvailabilitySlot
	requests    []*models.LessonUpdateRequest
	invoices    map[uuid.UUID]*models.Invoice
	invoiceSeq  int
	notified    map[uuid.UUID]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		lessons:  make(map[uuid.UUID]*models.Lesson),
		terms:    make(map[uuid.UUID]*models.Term),
		invoices: make(map[uuid.UUID]*models.Invoice),
		notified: make(map[uuid.UUID]bool),
	}
}

func (f *fakeStore) WithinTx(fn func(Store) error) error { return fn(f) }

func (f *fakeStore) GetLesson(id uuid.UUID) (*models.Lesson, error) {
	lesson, ok := f.lessons[id]
	if !ok {
		return nil, ErrNotFound
	}
	return lesson, nil
}

func (f *fakeStore) GetTerm(id uuid.UUID) (*models.Term, error) {
	term, ok := f.terms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return term, nil
}

func (f *fakeStore) HasActiveLesson(tutorID, studentID, subjectID uuid.UUID) (bool, error) {
	active := map[models.OccurrenceStatus]bool{
		models.OccurrencePending:   true,
		models.OccurrenceScheduled: true,
		models.OccurrenceConfirmed: true,
	}
	for _, lesson := range f.lessons {
		if lesson.TutorID != tutorID || lesson.StudentID != studentID || lesson.SubjectID != subjectID {
			continue
		}
		for _, occ := range f.occurrences {
			if occ.LessonID == lesson.ID && active[occ.Status] {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeStore) CreateLesson(lesson *models.Lesson) error {
	if lesson.ID == uuid.Nil {
		lesson.ID = uuid.New()
	}
	f.lessons[lesson.ID] = lesson
	return nil
}

func (f *fakeStore) SaveLesson(lesson *models.Lesson) error {
	f.lessons[lesson.ID] = lesson
	return nil
}

func (f *fakeStore) CreateOccurrences(occurrences []models.LessonOccurrence) error {
	for i := range occurrences {
		occ := occurrences[i]
		if occ.ID == uuid.Nil {
			occ.ID = uuid.New()
		}
		f.occurrences = append(f.occurrences, &occ)
	}
	return nil
}

func (f *fakeStore) MarkScheduledOccurrencesPending(lessonID uuid.UUID, from time.Time) (int64, error) {
	var n int64
	for _, occ := range f.occurrences {
		if occ.LessonID == lessonID && occ.Status == models.OccurrenceScheduled && !occ.Date.Before(from) {
			occ.Status = models.OccurrencePending
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) NextPendingOccurrence(lessonID uuid.UUID, from time.Time) (*models.LessonOccurrence, error) {
	var next *models.LessonOccurrence
	for _, occ := range f.occurrences {
		if occ.LessonID != lessonID || occ.Status != models.OccurrencePending || occ.Date.Before(from) {
			continue
		}
		if next == nil || occ.Date.Before(next.Date) {
			next = occ
		}
	}
	return next, nil
}

func (f *fakeStore) CancelOccurrencesFrom(lessonID uuid.UUID, from time.Time) (int64, error) {
	var n int64
	for _, occ := range f.occurrences {
		if occ.LessonID == lessonID && !occ.Date.Before(from) && occ.Status != models.OccurrenceCancelled {
			occ.Status = models.OccurrenceCancelled
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteOccurrencesFrom(lessonID uuid.UUID, from time.Time) error {
	kept := f.occurrences[:0]
	for _, occ := range f.occurrences {
		if occ.LessonID == lessonID && !occ.Date.Before(from) {
			continue
		}
		kept = append(kept, occ)
	}
	f.occurrences = kept
	return nil
}

func (f *fakeStore) SweepOccurrenceStatuses(today time.Time) (int64, error) {
	var n int64
	for _, occ := range f.occurrences {
		if !occ.Date.Before(today) {
			continue
		}
		switch occ.Status {
		case models.OccurrencePending:
			occ.Status = models.OccurrenceCancelled
			n++
		case models.OccurrenceScheduled:
			occ.Status = models.OccurrenceCompleted
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateSlot(slot *models.TutorAvailabilitySlot) error {
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	f.slots = append(f.slots, slot)
	return nil
}

func (f *fakeStore) BookSlot(tutorID uuid.UUID, weekday, startMinute, endMinute int) (*models.TutorAvailabilitySlot, error) {
	var match *models.TutorAvailabilitySlot
	for _, slot := range f.slots {
		if slot.TutorID != tutorID || slot.Weekday != weekday || slot.Status != models.SlotAvailable {
			continue
		}
		if slot.StartMinute <= startMinute && slot.EndMinute >= endMinute {
			if match == nil || slot.StartMinute < match.StartMinute {
				match = slot
			}
		}
	}
	if match == nil {
		return nil, ErrNoAvailabilityFound
	}
	leftovers, ok := carve(Interval{Start: match.StartMinute, End: match.EndMinute}, startMinute, endMinute)
	if !ok {
		return nil, ErrNoAvailabilityFound
	}
	match.StartMinute = startMinute
	match.EndMinute = endMinute
	match.Status = models.SlotUnavailable
	for _, left := range leftovers {
		f.slots = append(f.slots, &models.TutorAvailabilitySlot{
			ID:          uuid.New(),
			TutorID:     tutorID,
			Weekday:     weekday,
			StartMinute: left.Start,
			EndMinute:   left.End,
			Status:      models.SlotAvailable,
		})
	}
	return match, nil
}

func (f *fakeStore) ReleaseSlot(tutorID uuid.UUID, weekday, startMinute, endMinute int) error {
	for _, slot := range f.slots {
		if slot.TutorID == tutorID && slot.Weekday == weekday &&
			slot.StartMinute == startMinute && slot.EndMinute == endMinute &&
			slot.Status == models.SlotUnavailable {
			slot.Status = models.SlotAvailable
		}
	}
	return nil
}

func (f *fakeStore) MergeSlots(tutorID uuid.UUID, weekday int) error {
	var mine []*models.TutorAvailabilitySlot
	kept := f.slots[:0]
	for _, slot := range f.slots {
		if slot.TutorID == tutorID && slot.Weekday == weekday && slot.Status == models.SlotAvailable {
			mine = append(mine, slot)
			continue
		}
		kept = append(kept, slot)
	}
	intervals := make([]Interval, len(mine))
	for i, slot := range mine {
		intervals[i] = Interval{Start: slot.StartMinute, End: slot.EndMinute}
	}
	for _, iv := range coalesce(intervals) {
		kept = append(kept, &models.TutorAvailabilitySlot{
			ID:          uuid.New(),
			TutorID:     tutorID,
			Weekday:     weekday,
			StartMinute: iv.Start,
			EndMinute:   iv.End,
			Status:      models.SlotAvailable,
		})
	}
	f.slots = kept
	return nil
}

func (f *fakeStore) ListAvailableSlots() ([]models.TutorAvailabilitySlot, error) {
	var out []models.TutorAvailabilitySlot
	for _, slot := range f.slots {
		if slot.Status == models.SlotAvailable {
			out = append(out, *slot)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weekday != out[j].Weekday {
			return out[i].Weekday < out[j].Weekday
		}
		return out[i].StartMinute < out[j].StartMinute
	})
	return out, nil
}

func (f *fakeStore) UnhandledUpdateRequest(lessonID uuid.UUID) (*models.LessonUpdateRequest, error) {
	for _, req := range f.requests {
		if req.LessonID == lessonID && !req.Handled {
			return req, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateUpdateRequest(req *models.LessonUpdateRequest) error {
	for _, existing := range f.requests {
		if existing.LessonID == req.LessonID && !existing.Handled {
			return ErrDuplicateRequest
		}
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	f.requests = append(f.requests, req)
	return nil
}

func (f *fakeStore) MarkRequestHandled(id uuid.UUID) error {
	for _, req := range f.requests {
		if req.ID == id {
			req.Handled = true
		}
	}
	return nil
}

func (f *fakeStore) FlagStudentNotification(studentID uuid.UUID) error {
	f.notified[studentID] = true
	return nil
}

func (f *fakeStore) BillableOccurrences(studentID uuid.UUID) ([]*models.LessonOccurrence, error) {
	linked := make(map[uuid.UUID]bool)
	for _, inv := range f.invoices {
		for _, occ := range inv.Occurrences {
			linked[occ.ID] = true
		}
	}
	var out []*models.LessonOccurrence
	for _, occ := range f.occurrences {
		lesson, ok := f.lessons[occ.LessonID]
		if !ok || lesson.StudentID != studentID {
			continue
		}
		if occ.Status != models.OccurrenceCompleted || occ.Invoiced || linked[occ.ID] {
			continue
		}
		occ.Lesson = *lesson
		out = append(out, occ)
	}
	return out, nil
}

func (f *fakeStore) NextInvoiceNumber() (string, error) {
	f.invoiceSeq++
	return fmt.Sprintf("INV-%08d", f.invoiceSeq), nil
}

func (f *fakeStore) CreateInvoice(invoice *models.Invoice, occurrences []*models.LessonOccurrence) error {
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	invoice.Occurrences = occurrences
	f.invoices[invoice.ID] = invoice
	return nil
}

func (f *fakeStore) GetInvoice(id uuid.UUID) (*models.Invoice, error) {
	invoice, ok := f.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	return invoice, nil
}

func (f *fakeStore) SaveInvoice(invoice *models.Invoice) error {
	f.invoices[invoice.ID] = invoice
	return nil
}

func (f *fakeStore) MarkOccurrencesInvoiced(ids []uuid.UUID) error {
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for _, occ := range f.occurrences {
		if want[occ.ID] {
			occ.Invoiced = true
		}
	}
	return nil
}

func (f *fakeStore) SweepOverdueInvoices(today time.Time) (int64, error) {
	var n int64
	for _, inv := range f.invoices {
		if inv.Status == models.InvoiceUnpaid && inv.DueDate.Before(today) {
			inv.Status = models.InvoiceOverdue
			n++
		}
	}
	return n, nil
}

// availableSlot seeds an open window on the fake store.
func (f *fakeStore) availableSlot(tutorID uuid.UUID, weekday, start, end int) {
	f.slots = append(f.slots, &models.TutorAvailabilitySlot{
		ID:          uuid.New(),
		TutorID:     tutorID,
		Weekday:     weekday,
		StartMinute: start,
		EndMinute:   end,
		Status:      models.SlotAvailable,
	})
}

func (f *fakeStore) slotStates(tutorID uuid.UUID, weekday int) []string {
	var out []string
	for _, slot := range f.slots {
		if slot.TutorID == tutorID && slot.Weekday == weekday {
			out = append(out, Interval{Start: slot.StartMinute, End: slot.EndMinute}.String()+" "+string(slot.Status))
		}
	}
	sort.Strings(out)
	return out
}

func (f *fakeStore) lessonOccurrences(lessonID uuid.UUID) []*models.LessonOccurrence {
	var out []*models.LessonOccurrence
	for _, occ := range f.occurrences {
		if occ.LessonID == lessonID {
			out = append(out, occ)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

type fixture struct {
	store   *fakeStore
	svc     *LessonService
	tutorID uuid.UUID
	termID  uuid.UUID
	today   time.Time
}

// newFixture pins "today" to Tuesday 2024-08-20 inside a term running
// September through December 2024, with one tutor free Monday 09:00-13:00.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newFakeStore()
	tutorID := uuid.New()
	term := &models.Term{
		ID:        uuid.New(),
		Name:      "Fall 2024",
		StartDate: day(2024, time.September, 1),
		EndDate:   day(2024, time.December, 20),
	}
	store.terms[term.ID] = term
	store.availableSlot(tutorID, int(time.Monday), 540, 780)

	svc := NewLessonService(store)
	today := day(2024, time.August, 20)
	svc.Now = func() time.Time { return today.Add(10 * time.Hour) }

	return &fixture{store: store, svc: svc, tutorID: tutorID, termID: term.ID, today: today}
}

func (fx *fixture) createInput() CreateLessonInput {
	return CreateLessonInput{
		TutorID:         fx.tutorID,
		StudentID:       uuid.New(),
		SubjectID:       uuid.New(),
		TermID:          fx.termID,
		Frequency:       models.FrequencyWeekly,
		DurationMinutes: 60,
		StartDate:       day(2024, time.September, 2), // a Monday
		StartMinute:     600,
		PricePerLesson:  45,
	}
}

func TestCreateLesson(t *testing.T) {
	t.Run("books the window and expands the calendar", func(t *testing.T) {
		fx := newFixture(t)
		result, err := fx.svc.CreateLesson(fx.createInput())
		require.NoError(t, err)

		// Weekly Mondays from Sep 2 through Dec 16.
		require.Len(t, result.Occurrences, 16)
		require.Equal(t, day(2024, time.September, 2), result.Occurrences[0].Date)
		require.Equal(t, day(2024, time.December, 16), result.Occurrences[15].Date)
		for _, occ := range result.Occurrences {
			require.Equal(t, models.OccurrenceScheduled, occ.Status)
			require.Equal(t, 600, occ.StartMinute)
		}

		require.Equal(t, 600, result.BookedSlot.StartMinute)
		require.Equal(t, 660, result.BookedSlot.EndMinute)
		require.Equal(t, models.SlotUnavailable, result.BookedSlot.Status)
		require.Equal(t, []string{
			"09:00 - 10:00 available",
			"10:00 - 11:00 unavailable",
			"11:00 - 13:00 available",
		}, fx.store.slotStates(fx.tutorID, int(time.Monday)))

		require.Contains(t, fx.store.lessons, result.Lesson.ID)
	})

	t.Run("rejects bad input before touching the store", func(t *testing.T) {
		fx := newFixture(t)

		in := fx.createInput()
		in.DurationMinutes = 0
		_, err := fx.svc.CreateLesson(in)
		require.ErrorIs(t, err, ErrInvalidDuration)

		in = fx.createInput()
		in.PricePerLesson = -5
		_, err = fx.svc.CreateLesson(in)
		require.ErrorIs(t, err, ErrInvalidPrice)

		in = fx.createInput()
		in.Frequency = models.Frequency("daily")
		_, err = fx.svc.CreateLesson(in)
		require.ErrorIs(t, err, ErrInvalidFrequency)

		require.Empty(t, fx.store.lessons)
	})

	t.Run("rejects a start outside the term or in the past", func(t *testing.T) {
		fx := newFixture(t)

		in := fx.createInput()
		in.StartDate = day(2025, time.January, 6)
		_, err := fx.svc.CreateLesson(in)
		require.ErrorIs(t, err, ErrInvalidStartDate)

		in = fx.createInput()
		in.StartDate = day(2024, time.August, 12)
		_, err = fx.svc.CreateLesson(in)
		require.ErrorIs(t, err, ErrInvalidStartDate)
	})

	t.Run("rejects a window the tutor does not offer", func(t *testing.T) {
		fx := newFixture(t)
		in := fx.createInput()
		in.StartMinute = 750 // would run past 13:00
		_, err := fx.svc.CreateLesson(in)
		require.ErrorIs(t, err, ErrNoAvailabilityFound)
		require.Empty(t, fx.store.lessons)
		require.Empty(t, fx.store.occurrences)
	})

	t.Run("rejects a second active lesson for the same triple", func(t *testing.T) {
		fx := newFixture(t)
		fx.store.availableSlot(fx.tutorID, int(time.Wednesday), 540, 780)

		in := fx.createInput()
		_, err := fx.svc.CreateLesson(in)
		require.NoError(t, err)

		in.StartDate = day(2024, time.September, 4) // a Wednesday
		_, err = fx.svc.CreateLesson(in)
		require.ErrorIs(t, err, ErrLessonExists)
	})
}

func TestSubmitUpdateRequest(t *testing.T) {
	fx := newFixture(t)
	result, err := fx.svc.CreateLesson(fx.createInput())
	require.NoError(t, err)
	lessonID := result.Lesson.ID

	req, err := fx.svc.SubmitUpdateRequest(lessonID, "tutor", models.UpdateChangeDayTime, "prefers afternoons")
	require.NoError(t, err)
	require.False(t, req.Handled)

	// Every future scheduled occurrence is now pending.
	for _, occ := range fx.store.lessonOccurrences(lessonID) {
		require.Equal(t, models.OccurrencePending, occ.Status)
	}

	_, err = fx.svc.SubmitUpdateRequest(lessonID, "student", models.UpdateCancelLessons, "")
	require.ErrorIs(t, err, ErrDuplicateRequest)

	_, err = fx.svc.SubmitUpdateRequest(lessonID, "tutor", models.UpdateOption("swap_subject"), "")
	require.Error(t, err)

	_, err = fx.svc.SubmitUpdateRequest(uuid.New(), "tutor", models.UpdateChangeTutor, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolveCancelLessons(t *testing.T) {
	fx := newFixture(t)
	result, err := fx.svc.CreateLesson(fx.createInput())
	require.NoError(t, err)
	lessonID := result.Lesson.ID

	// Move the clock mid-term and settle the past.
	fx.svc.Now = func() time.Time { return day(2024, time.October, 15) }
	_, err = fx.svc.SweepOccurrenceStatuses()
	require.NoError(t, err)

	_, err = fx.svc.SubmitUpdateRequest(lessonID, "student", models.UpdateCancelLessons, "moving away")
	require.NoError(t, err)

	cancelled, err := fx.svc.ResolveCancelLessons(lessonID)
	require.NoError(t, err)
	require.Equal(t, int64(9), cancelled.CancelledCount) // Oct 21 .. Dec 16

	for _, occ := range fx.store.lessonOccurrences(lessonID) {
		if occ.Date.Before(day(2024, time.October, 15)) {
			require.Equal(t, models.OccurrenceCompleted, occ.Status)
		} else {
			require.Equal(t, models.OccurrenceCancelled, occ.Status)
		}
	}

	// The window is free again and merged back into one block.
	require.Equal(t, []string{"09:00 - 13:00 available"}, fx.store.slotStates(fx.tutorID, int(time.Monday)))

	require.Contains(t, cancelled.Lesson.Notes, "Lessons cancelled on 2024-10-15")
	open, err := fx.store.UnhandledUpdateRequest(lessonID)
	require.NoError(t, err)
	require.Nil(t, open)
	require.True(t, fx.store.notified[result.Lesson.StudentID])
}

func TestResolveChangeTutorOrDayTime(t *testing.T) {
	t.Run("moves the lesson to a new tutor", func(t *testing.T) {
		fx := newFixture(t)
		result, err := fx.svc.CreateLesson(fx.createInput())
		require.NoError(t, err)
		lessonID := result.Lesson.ID

		newTutor := uuid.New()
		fx.store.availableSlot(newTutor, int(time.Thursday), 840, 960)

		fx.svc.Now = func() time.Time { return day(2024, time.October, 15) }
		_, err = fx.svc.SubmitUpdateRequest(lessonID, "student", models.UpdateChangeTutor, "")
		require.NoError(t, err)

		newStart := day(2024, time.October, 17) // a Thursday
		newMinute := 840
		updated, err := fx.svc.ResolveChangeTutorOrDayTime(lessonID, RescheduleInput{
			NewTutorID:     &newTutor,
			NewStartDate:   &newStart,
			NewStartMinute: &newMinute,
		})
		require.NoError(t, err)
		require.Equal(t, newTutor, updated.TutorID)
		require.Equal(t, newStart, updated.StartDate)
		require.Equal(t, 840, updated.StartMinute)
		require.Empty(t, updated.Notes)

		// Old tutor's Monday window is whole again, new tutor's Thursday is
		// split around the booking.
		require.Equal(t, []string{"09:00 - 13:00 available"}, fx.store.slotStates(fx.tutorID, int(time.Monday)))
		require.Equal(t, []string{
			"14:00 - 15:00 unavailable",
			"15:00 - 16:00 available",
		}, fx.store.slotStates(newTutor, int(time.Thursday)))

		// The calendar restarts on the new day: Thursdays Oct 17 .. Dec 19,
		// with the already-run Mondays untouched.
		occs := fx.store.lessonOccurrences(lessonID)
		var future []*models.LessonOccurrence
		for _, occ := range occs {
			if !occ.Date.Before(newStart) {
				future = append(future, occ)
			}
		}
		require.Len(t, future, 10)
		require.Equal(t, newStart, future[0].Date)
		require.Equal(t, day(2024, time.December, 19), future[len(future)-1].Date)
		for _, occ := range future {
			require.Equal(t, models.OccurrenceScheduled, occ.Status)
			require.Equal(t, 840, occ.StartMinute)
		}

		open, err := fx.store.UnhandledUpdateRequest(lessonID)
		require.NoError(t, err)
		require.Nil(t, open)
		require.True(t, fx.store.notified[result.Lesson.StudentID])
	})

	t.Run("changes only the frequency in place", func(t *testing.T) {
		fx := newFixture(t)
		result, err := fx.svc.CreateLesson(fx.createInput())
		require.NoError(t, err)
		lessonID := result.Lesson.ID

		fx.svc.Now = func() time.Time { return day(2024, time.October, 15) }
		_, err = fx.svc.SubmitUpdateRequest(lessonID, "student", models.UpdateChangeFrequency, "every other week")
		require.NoError(t, err)

		newFreq := models.FrequencyBiweekly
		updated, err := fx.svc.ResolveChangeTutorOrDayTime(lessonID, RescheduleInput{NewFrequency: &newFreq})
		require.NoError(t, err)
		require.Equal(t, models.FrequencyBiweekly, updated.Frequency)
		require.Equal(t, fx.tutorID, updated.TutorID)
		require.Equal(t, 600, updated.StartMinute)

		// The booking stays exactly where it was.
		require.Equal(t, []string{
			"09:00 - 10:00 available",
			"10:00 - 11:00 unavailable",
			"11:00 - 13:00 available",
		}, fx.store.slotStates(fx.tutorID, int(time.Monday)))

		// Every other Monday from Oct 21 through term end.
		var future []*models.LessonOccurrence
		for _, occ := range fx.store.lessonOccurrences(lessonID) {
			if !occ.Date.Before(day(2024, time.October, 21)) {
				future = append(future, occ)
			}
		}
		require.Len(t, future, 5)
		require.Equal(t, day(2024, time.October, 21), future[0].Date)
		require.Equal(t, day(2024, time.December, 16), future[4].Date)

		open, err := fx.store.UnhandledUpdateRequest(lessonID)
		require.NoError(t, err)
		require.Nil(t, open)
	})

	t.Run("shrinks the duration inside the booked window", func(t *testing.T) {
		fx := newFixture(t)
		result, err := fx.svc.CreateLesson(fx.createInput())
		require.NoError(t, err)
		lessonID := result.Lesson.ID

		fx.svc.Now = func() time.Time { return day(2024, time.October, 15) }
		_, err = fx.svc.SubmitUpdateRequest(lessonID, "tutor", models.UpdateChangeDuration, "30 minutes is enough")
		require.NoError(t, err)

		newDuration := 30
		updated, err := fx.svc.ResolveChangeTutorOrDayTime(lessonID, RescheduleInput{NewDuration: &newDuration})
		require.NoError(t, err)
		require.Equal(t, 30, updated.DurationMinutes)

		// The freed half hour is given back to the tutor.
		require.Equal(t, []string{
			"09:00 - 10:00 available",
			"10:00 - 10:30 unavailable",
			"10:30 - 13:00 available",
		}, fx.store.slotStates(fx.tutorID, int(time.Monday)))
	})

	t.Run("grows the duration into adjacent availability", func(t *testing.T) {
		fx := newFixture(t)
		result, err := fx.svc.CreateLesson(fx.createInput())
		require.NoError(t, err)
		lessonID := result.Lesson.ID

		fx.svc.Now = func() time.Time { return day(2024, time.October, 15) }
		_, err = fx.svc.SubmitUpdateRequest(lessonID, "student", models.UpdateChangeDuration, "")
		require.NoError(t, err)

		newDuration := 90
		updated, err := fx.svc.ResolveChangeTutorOrDayTime(lessonID, RescheduleInput{NewDuration: &newDuration})
		require.NoError(t, err)
		require.Equal(t, 90, updated.DurationMinutes)

		require.Equal(t, []string{
			"09:00 - 10:00 available",
			"10:00 - 11:30 unavailable",
			"11:30 - 13:00 available",
		}, fx.store.slotStates(fx.tutorID, int(time.Monday)))
	})

	t.Run("a full calendar leaves the original booking intact", func(t *testing.T) {
		fx := newFixture(t)
		result, err := fx.svc.CreateLesson(fx.createInput())
		require.NoError(t, err)
		lessonID := result.Lesson.ID

		fx.svc.Now = func() time.Time { return day(2024, time.October, 15) }
		_, err = fx.svc.SubmitUpdateRequest(lessonID, "student", models.UpdateChangeTutor, "")
		require.NoError(t, err)

		busyTutor := uuid.New() // no availability at all
		newStart := day(2024, time.October, 17)
		_, err = fx.svc.ResolveChangeTutorOrDayTime(lessonID, RescheduleInput{
			NewTutorID:   &busyTutor,
			NewStartDate: &newStart,
		})
		require.ErrorIs(t, err, ErrNoAvailabilityFound)

		// Old booking untouched, request still open.
		require.Contains(t, fx.store.slotStates(fx.tutorID, int(time.Monday)), "10:00 - 11:00 unavailable")
		open, err := fx.store.UnhandledUpdateRequest(lessonID)
		require.NoError(t, err)
		require.NotNil(t, open)
	})

	t.Run("nothing pending auto-closes the request", func(t *testing.T) {
		fx := newFixture(t)
		result, err := fx.svc.CreateLesson(fx.createInput())
		require.NoError(t, err)
		lessonID := result.Lesson.ID

		_, err = fx.svc.SubmitUpdateRequest(lessonID, "student", models.UpdateChangeDayTime, "")
		require.NoError(t, err)

		// Jump past the term; the sweep cancels every pending occurrence.
		fx.svc.Now = func() time.Time { return day(2025, time.January, 10) }
		_, err = fx.svc.SweepOccurrenceStatuses()
		require.NoError(t, err)

		_, err = fx.svc.ResolveChangeTutorOrDayTime(lessonID, RescheduleInput{})
		require.ErrorIs(t, err, ErrNothingToReschedule)

		open, err := fx.store.UnhandledUpdateRequest(lessonID)
		require.NoError(t, err)
		require.Nil(t, open)
	})

	t.Run("rejects a new start outside the term", func(t *testing.T) {
		fx := newFixture(t)
		result, err := fx.svc.CreateLesson(fx.createInput())
		require.NoError(t, err)
		lessonID := result.Lesson.ID

		fx.svc.Now = func() time.Time { return day(2024, time.October, 15) }
		_, err = fx.svc.SubmitUpdateRequest(lessonID, "tutor", models.UpdateChangeDayTime, "")
		require.NoError(t, err)

		newStart := day(2025, time.February, 3)
		_, err = fx.svc.ResolveChangeTutorOrDayTime(lessonID, RescheduleInput{NewStartDate: &newStart})
		require.ErrorIs(t, err, ErrInvalidStartDate)
	})
}

func TestSweepOccurrenceStatuses(t *testing.T) {
	fx := newFixture(t)
	lessonID := uuid.New()
	today := day(2024, time.October, 15)
	fx.svc.Now = func() time.Time { return today }

	seed := []struct {
		date   time.Time
		status models.OccurrenceStatus
		want   models.OccurrenceStatus
	}{
		{day(2024, time.October, 7), models.OccurrencePending, models.OccurrenceCancelled},
		{day(2024, time.October, 7), models.OccurrenceScheduled, models.OccurrenceCompleted},
		{day(2024, time.October, 7), models.OccurrenceCompleted, models.OccurrenceCompleted},
		{today, models.OccurrenceScheduled, models.OccurrenceScheduled},
		{day(2024, time.October, 21), models.OccurrencePending, models.OccurrencePending},
	}
	for _, s := range seed {
		fx.store.occurrences = append(fx.store.occurrences, &models.LessonOccurrence{
			ID: uuid.New(), LessonID: lessonID, Date: s.date, Status: s.status,
		})
	}

	changed, err := fx.svc.SweepOccurrenceStatuses()
	require.NoError(t, err)
	require.Equal(t, int64(2), changed)
	for i, s := range seed {
		require.Equal(t, s.want, fx.store.occurrences[i].Status, "row %d", i)
	}

	// Running it again changes nothing.
	changed, err = fx.svc.SweepOccurrenceStatuses()
	require.NoError(t, err)
	require.Zero(t, changed)
}

func TestPublishWindowMergesInOneTransaction(t *testing.T) {
	fx := newFixture(t)

	// A window touching the existing 09:00-13:00 block lands already merged.
	err := fx.store.WithinTx(func(tx Store) error {
		if err := tx.CreateSlot(&models.TutorAvailabilitySlot{
			TutorID:     fx.tutorID,
			Weekday:     int(time.Monday),
			StartMinute: 780,
			EndMinute:   840,
			Status:      models.SlotAvailable,
		}); err != nil {
			return err
		}
		return tx.MergeSlots(fx.tutorID, int(time.Monday))
	})
	require.NoError(t, err)
	require.Equal(t, []string{"09:00 - 14:00 available"}, fx.store.slotStates(fx.tutorID, int(time.Monday)))
}

func TestAllAvailability(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.CreateLesson(fx.createInput())
	require.NoError(t, err)

	board, err := fx.svc.AllAvailability()
	require.NoError(t, err)
	require.Len(t, board, 1)
	require.Equal(t, "Monday", board[0].Weekday)
	require.Len(t, board[0].Ranges, 2)
	require.Equal(t, "09:00 - 10:00", board[0].Ranges[0].TimeRange)
	require.Equal(t, "11:00 - 13:00", board[0].Ranges[1].TimeRange)
}
