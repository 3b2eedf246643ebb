package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nekesa/tutorhub/models"
	"github.com/nekesa/tutorhub/utils"
)

// Store is the persistence surface the lesson coordinator runs on. The GORM
// implementation below is the production one; tests substitute an in-memory
// fake. Methods called inside WithinTx operate on the transaction handle.
type Store interface {
	WithinTx(fn func(Store) error) error

	GetLesson(id uuid.UUID) (*models.Lesson, error)
	GetTerm(id uuid.UUID) (*models.Term, error)
	HasActiveLesson(tutorID, studentID, subjectID uuid.UUID) (bool, error)
	CreateLesson(lesson *models.Lesson) error
	SaveLesson(lesson *models.Lesson) error

	CreateOccurrences(occurrences []models.LessonOccurrence) error
	MarkScheduledOccurrencesPending(lessonID uuid.UUID, from time.Time) (int64, error)
	NextPendingOccurrence(lessonID uuid.UUID, from time.Time) (*models.LessonOccurrence, error)
	CancelOccurrencesFrom(lessonID uuid.UUID, from time.Time) (int64, error)
	DeleteOccurrencesFrom(lessonID uuid.UUID, from time.Time) error
	SweepOccurrenceStatuses(today time.Time) (int64, error)

	CreateSlot(slot *models.TutorAvailabilitySlot) error
	BookSlot(tutorID uuid.UUID, weekday, startMinute, endMinute int) (*models.TutorAvailabilitySlot, error)
	ReleaseSlot(tutorID uuid.UUID, weekday, startMinute, endMinute int) error
	MergeSlots(tutorID uuid.UUID, weekday int) error
	ListAvailableSlots() ([]models.TutorAvailabilitySlot, error)

	UnhandledUpdateRequest(lessonID uuid.UUID) (*models.LessonUpdateRequest, error)
	CreateUpdateRequest(req *models.LessonUpdateRequest) error
	MarkRequestHandled(id uuid.UUID) error

	FlagStudentNotification(studentID uuid.UUID) error

	BillableOccurrences(studentID uuid.UUID) ([]*models.LessonOccurrence, error)
	NextInvoiceNumber() (string, error)
	CreateInvoice(invoice *models.Invoice, occurrences []*models.LessonOccurrence) error
	GetInvoice(id uuid.UUID) (*models.Invoice, error)
	SaveInvoice(invoice *models.Invoice) error
	MarkOccurrencesInvoiced(ids []uuid.UUID) error
	SweepOverdueInvoices(today time.Time) (int64, error)
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) WithinTx(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (s *gormStore) GetLesson(id uuid.UUID) (*models.Lesson, error) {
	var lesson models.Lesson
	if err := s.db.First(&lesson, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lesson, nil
}

func (s *gormStore) GetTerm(id uuid.UUID) (*models.Term, error) {
	var term models.Term
	if err := s.db.First(&term, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &term, nil
}

func (s *gormStore) HasActiveLesson(tutorID, studentID, subjectID uuid.UUID) (bool, error) {
	active := []models.OccurrenceStatus{
		models.OccurrencePending,
		models.OccurrenceScheduled,
		models.OccurrenceConfirmed,
	}
	var count int64
	err := s.db.Model(&models.Lesson{}).
		Joins("JOIN lesson_occurrences ON lesson_occurrences.lesson_id = lessons.id").
		Where("lessons.tutor_id = ? AND lessons.student_id = ? AND lessons.subject_id = ?", tutorID, studentID, subjectID).
		Where("lesson_occurrences.status IN ?", active).
		Count(&count).Error
	return count > 0, err
}

func (s *gormStore) CreateLesson(lesson *models.Lesson) error {
	return s.db.Create(lesson).Error
}

func (s *gormStore) SaveLesson(lesson *models.Lesson) error {
	return s.db.Save(lesson).Error
}

func (s *gormStore) CreateOccurrences(occurrences []models.LessonOccurrence) error {
	if len(occurrences) == 0 {
		return nil
	}
	return s.db.Create(&occurrences).Error
}

func (s *gormStore) MarkScheduledOccurrencesPending(lessonID uuid.UUID, from time.Time) (int64, error) {
	res := s.db.Model(&models.LessonOccurrence{}).
		Where("lesson_id = ? AND status = ? AND date >= ?", lessonID, models.OccurrenceScheduled, from).
		Update("status", models.OccurrencePending)
	return res.RowsAffected, res.Error
}

func (s *gormStore) NextPendingOccurrence(lessonID uuid.UUID, from time.Time) (*models.LessonOccurrence, error) {
	var occ models.LessonOccurrence
	err := s.db.
		Where("lesson_id = ? AND status = ? AND date >= ?", lessonID, models.OccurrencePending, from).
		Order("date asc").
		First(&occ).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &occ, nil
}

func (s *gormStore) CancelOccurrencesFrom(lessonID uuid.UUID, from time.Time) (int64, error) {
	res := s.db.Model(&models.LessonOccurrence{}).
		Where("lesson_id = ? AND date >= ? AND status <> ?", lessonID, from, models.OccurrenceCancelled).
		Update("status", models.OccurrenceCancelled)
	return res.RowsAffected, res.Error
}

func (s *gormStore) DeleteOccurrencesFrom(lessonID uuid.UUID, from time.Time) error {
	return s.db.
		Where("lesson_id = ? AND date >= ?", lessonID, from).
		Delete(&models.LessonOccurrence{}).Error
}

// SweepOccurrenceStatuses applies the lazy calendar upkeep: past-dated
// pending occurrences become cancelled, past-dated scheduled ones completed.
func (s *gormStore) SweepOccurrenceStatuses(today time.Time) (int64, error) {
	cancelled := s.db.Model(&models.LessonOccurrence{}).
		Where("date < ? AND status = ?", today, models.OccurrencePending).
		Update("status", models.OccurrenceCancelled)
	if cancelled.Error != nil {
		return 0, cancelled.Error
	}
	completed := s.db.Model(&models.LessonOccurrence{}).
		Where("date < ? AND status = ?", today, models.OccurrenceScheduled).
		Update("status", models.OccurrenceCompleted)
	if completed.Error != nil {
		return cancelled.RowsAffected, completed.Error
	}
	return cancelled.RowsAffected + completed.RowsAffected, nil
}

func (s *gormStore) CreateSlot(slot *models.TutorAvailabilitySlot) error {
	return s.db.Create(slot).Error
}

// BookSlot claims [startMinute, endMinute) out of an available interval on
// the tutor's weekday. The matched row is locked, rewritten to exactly the
// booked range and flipped unavailable; up to two leftover available pieces
// are inserted around it.
func (s *gormStore) BookSlot(tutorID uuid.UUID, weekday, startMinute, endMinute int) (*models.TutorAvailabilitySlot, error) {
	var slot models.TutorAvailabilitySlot
	err := s.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tutor_id = ? AND weekday = ? AND status = ? AND start_minute <= ? AND end_minute >= ?",
			tutorID, weekday, models.SlotAvailable, startMinute, endMinute).
		Order("start_minute asc").
		First(&slot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoAvailabilityFound
		}
		return nil, err
	}

	leftovers, ok := carve(Interval{Start: slot.StartMinute, End: slot.EndMinute}, startMinute, endMinute)
	if !ok {
		return nil, ErrNoAvailabilityFound
	}

	slot.StartMinute = startMinute
	slot.EndMinute = endMinute
	slot.Status = models.SlotUnavailable
	if err := s.db.Save(&slot).Error; err != nil {
		return nil, err
	}

	for _, left := range leftovers {
		piece := models.TutorAvailabilitySlot{
			TutorID:     tutorID,
			Weekday:     weekday,
			StartMinute: left.Start,
			EndMinute:   left.End,
			Status:      models.SlotAvailable,
		}
		if err := s.db.Create(&piece).Error; err != nil {
			return nil, err
		}
	}
	return &slot, nil
}

// ReleaseSlot flips an exactly matching unavailable interval back to
// available. A missing match is a no-op; only exact re-releases of
// previously booked ranges are supported.
func (s *gormStore) ReleaseSlot(tutorID uuid.UUID, weekday, startMinute, endMinute int) error {
	return s.db.Model(&models.TutorAvailabilitySlot{}).
		Where("tutor_id = ? AND weekday = ? AND start_minute = ? AND end_minute = ? AND status = ?",
			tutorID, weekday, startMinute, endMinute, models.SlotUnavailable).
		Update("status", models.SlotAvailable).Error
}

// MergeSlots coalesces the tutor's available intervals on a weekday into
// maximal disjoint runs. Adjacent intervals (end == next start) merge.
func (s *gormStore) MergeSlots(tutorID uuid.UUID, weekday int) error {
	var slots []models.TutorAvailabilitySlot
	err := s.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tutor_id = ? AND weekday = ? AND status = ?", tutorID, weekday, models.SlotAvailable).
		Order("start_minute asc").
		Find(&slots).Error
	if err != nil {
		return err
	}

	intervals := make([]Interval, len(slots))
	for i, slot := range slots {
		intervals[i] = Interval{Start: slot.StartMinute, End: slot.EndMinute}
	}
	merged := coalesce(intervals)
	if len(merged) == len(slots) {
		return nil
	}

	ids := make([]uuid.UUID, len(slots))
	for i, slot := range slots {
		ids[i] = slot.ID
	}
	if err := s.db.Where("id IN ?", ids).Delete(&models.TutorAvailabilitySlot{}).Error; err != nil {
		return err
	}
	for _, iv := range merged {
		piece := models.TutorAvailabilitySlot{
			TutorID:     tutorID,
			Weekday:     weekday,
			StartMinute: iv.Start,
			EndMinute:   iv.End,
			Status:      models.SlotAvailable,
		}
		if err := s.db.Create(&piece).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *gormStore) ListAvailableSlots() ([]models.TutorAvailabilitySlot, error) {
	var slots []models.TutorAvailabilitySlot
	err := s.db.Preload("Tutor").
		Where("status = ?", models.SlotAvailable).
		Order("weekday asc, start_minute asc").
		Find(&slots).Error
	return slots, err
}

func (s *gormStore) UnhandledUpdateRequest(lessonID uuid.UUID) (*models.LessonUpdateRequest, error) {
	var req models.LessonUpdateRequest
	err := s.db.Where("lesson_id = ? AND handled = ?", lessonID, false).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

func (s *gormStore) CreateUpdateRequest(req *models.LessonUpdateRequest) error {
	if err := s.db.Create(req).Error; err != nil {
		// The partial unique index on unhandled requests backs the
		// coordinator's check-then-insert under concurrency.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateRequest
		}
		return err
	}
	return nil
}

func (s *gormStore) MarkRequestHandled(id uuid.UUID) error {
	return s.db.Model(&models.LessonUpdateRequest{}).
		Where("id = ?", id).
		Update("handled", true).Error
}

func (s *gormStore) FlagStudentNotification(studentID uuid.UUID) error {
	return s.db.Model(&models.User{}).
		Where("id = ?", studentID).
		Update("has_new_lesson_notification", true).Error
}

// BillableOccurrences lists a student's completed occurrences that are not
// yet invoiced and not linked to an earlier invoice, with the lesson loaded
// for its price.
func (s *gormStore) BillableOccurrences(studentID uuid.UUID) ([]*models.LessonOccurrence, error) {
	var occurrences []*models.LessonOccurrence
	err := s.db.Preload("Lesson").
		Joins("JOIN lessons ON lessons.id = lesson_occurrences.lesson_id").
		Where("lessons.student_id = ? AND lesson_occurrences.status = ? AND lesson_occurrences.invoiced = ?",
			studentID, models.OccurrenceCompleted, false).
		Where("lesson_occurrences.id NOT IN (?)",
			s.db.Table("invoice_occurrences").Select("lesson_occurrence_id")).
		Find(&occurrences).Error
	return occurrences, err
}

func (s *gormStore) NextInvoiceNumber() (string, error) {
	return utils.GenerateInvoiceNumber(s.db)
}

func (s *gormStore) CreateInvoice(invoice *models.Invoice, occurrences []*models.LessonOccurrence) error {
	if err := s.db.Create(invoice).Error; err != nil {
		return err
	}
	return s.db.Model(invoice).Association("Occurrences").Append(occurrences)
}

func (s *gormStore) GetInvoice(id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := s.db.Preload("Occurrences").First(&invoice, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

func (s *gormStore) SaveInvoice(invoice *models.Invoice) error {
	return s.db.Save(invoice).Error
}

func (s *gormStore) MarkOccurrencesInvoiced(ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.Model(&models.LessonOccurrence{}).
		Where("id IN ?", ids).
		Update("invoiced", true).Error
}

func (s *gormStore) SweepOverdueInvoices(today time.Time) (int64, error) {
	res := s.db.Model(&models.Invoice{}).
		Where("status = ? AND due_date < ?", models.InvoiceUnpaid, today).
		Update("status", models.InvoiceOverdue)
	return res.RowsAffected, res.Error
}
