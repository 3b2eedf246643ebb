package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/nekesa/tutorhub/database"
	"github.com/nekesa/tutorhub/models"
	"github.com/nekesa/tutorhub/services"
)

type TutorApplicationRequest struct {
	Headline string `json:"headline" validate:"required"`
	Bio      string `json:"bio" validate:"required"`
}

func ApplyToBeATutor(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var req TutorApplicationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var existingTutor models.Tutor
	err := database.DB.Where("user_id = ?", userID).First(&existingTutor).Error
	if err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "You have already submitted an application."})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	newApplication := models.Tutor{
		UserID:   userID,
		Headline: &req.Headline,
		Bio:      &req.Bio,
	}

	if err := database.DB.Create(&newApplication).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create application"})
	}

	return c.Status(fiber.StatusCreated).JSON(newApplication)
}

type PublishAvailabilityRequest struct {
	Weekday     int `json:"weekday" validate:"min=0,max=6"`
	StartMinute int `json:"start_minute" validate:"min=0,max=1439"`
	EndMinute   int `json:"end_minute" validate:"min=1,max=1440"`
}

// PublishAvailability opens a weekly window on the tutor's calendar. Touching
// or overlapping windows are merged into one row.
func PublishAvailability(c *fiber.Ctx) error {
	tutorID := currentUserID(c)

	var req PublishAvailabilityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if req.StartMinute >= req.EndMinute {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Start time must be before end time"})
	}

	newSlot := models.TutorAvailabilitySlot{
		TutorID:     tutorID,
		Weekday:     req.Weekday,
		StartMinute: req.StartMinute,
		EndMinute:   req.EndMinute,
		Status:      models.SlotAvailable,
	}

	// Insert and merge in one transaction so a concurrent booking never sees
	// the unmerged ledger.
	err := services.Ledger.WithinTx(func(tx services.Store) error {
		if err := tx.CreateSlot(&newSlot); err != nil {
			return err
		}
		return tx.MergeSlots(tutorID, req.Weekday)
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to publish availability"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Availability published"})
}

func GetMyAvailability(c *fiber.Ctx) error {
	tutorID := currentUserID(c)

	var slots []models.TutorAvailabilitySlot
	database.DB.Where("tutor_id = ?", tutorID).
		Order("weekday asc, start_minute asc").
		Find(&slots)

	return c.JSON(slots)
}

func DeleteAvailabilitySlot(c *fiber.Ctx) error {
	tutorID := currentUserID(c)
	slotID := c.Params("slotId")

	var slot models.TutorAvailabilitySlot
	if err := database.DB.First(&slot, "id = ? AND tutor_id = ?", slotID, tutorID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Availability slot not found or you do not have permission to delete it."})
	}

	if slot.Status != models.SlotAvailable {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot delete a window that is booked by a lesson."})
	}

	database.DB.Delete(&slot)

	return c.SendStatus(fiber.StatusNoContent)
}

func GetMyLessons(c *fiber.Ctx) error {
	tutorID := currentUserID(c)

	var lessons []models.Lesson
	database.DB.Preload("Student").Preload("Subject").Preload("Term").
		Where("tutor_id = ?", tutorID).
		Order("start_date asc").
		Find(&lessons)

	return c.JSON(lessons)
}

func GetLessonOccurrences(c *fiber.Ctx) error {
	tutorID := currentUserID(c)
	lessonID := c.Params("lessonId")

	var lesson models.Lesson
	if err := database.DB.First(&lesson, "id = ? AND tutor_id = ?", lessonID, tutorID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Lesson not found"})
	}

	if _, err := services.Lessons.SweepOccurrenceStatuses(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to refresh lesson calendar"})
	}

	var occurrences []models.LessonOccurrence
	database.DB.Where("lesson_id = ?", lessonID).
		Order("date asc").
		Find(&occurrences)

	return c.JSON(occurrences)
}

type OccurrenceFeedbackRequest struct {
	Feedback string `json:"feedback" validate:"required"`
}

// SubmitOccurrenceFeedback records the tutor's note on a lesson occurrence
// that has already taken place.
func SubmitOccurrenceFeedback(c *fiber.Ctx) error {
	tutorID := currentUserID(c)
	occurrenceID := c.Params("occurrenceId")

	var req OccurrenceFeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var occurrence models.LessonOccurrence
	err := database.DB.Preload("Lesson").
		Joins("JOIN lessons ON lessons.id = lesson_occurrences.lesson_id").
		Where("lesson_occurrences.id = ? AND lessons.tutor_id = ?", occurrenceID, tutorID).
		First(&occurrence).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Lesson occurrence not found"})
	}

	if occurrence.Date.After(time.Now()) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot leave feedback on a future lesson"})
	}

	occurrence.Feedback = &req.Feedback
	if occurrence.Status == models.OccurrenceScheduled {
		occurrence.Status = models.OccurrenceCompleted
	}
	database.DB.Save(&occurrence)

	return c.JSON(occurrence)
}

type SubmitUpdateRequestBody struct {
	Option  string `json:"option" validate:"required,oneof=change_tutor change_day_time cancel_lessons change_frequency change_duration"`
	Details string `json:"details"`
}

// SubmitLessonUpdateRequest lets the tutor ask the admin to change one of
// their lessons. Only one open request per lesson is accepted.
func SubmitLessonUpdateRequest(c *fiber.Ctx) error {
	tutorID := currentUserID(c)
	lessonID := c.Params("lessonId")

	var req SubmitUpdateRequestBody
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var lesson models.Lesson
	if err := database.DB.First(&lesson, "id = ? AND tutor_id = ?", lessonID, tutorID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Lesson not found"})
	}

	request, err := services.Lessons.SubmitUpdateRequest(lesson.ID, "tutor", models.UpdateOption(req.Option), req.Details)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateRequest) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "An update request for this lesson is already awaiting review"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to submit update request"})
	}

	return c.Status(fiber.StatusCreated).JSON(request)
}

func GetMyUpdateRequests(c *fiber.Ctx) error {
	tutorID := currentUserID(c)

	var requests []models.LessonUpdateRequest
	database.DB.Preload("Lesson").Preload("Lesson.Student").Preload("Lesson.Subject").
		Joins("JOIN lessons ON lessons.id = lesson_update_requests.lesson_id").
		Where("lessons.tutor_id = ?", tutorID).
		Order("lesson_update_requests.created_at desc").
		Find(&requests)

	return c.JSON(requests)
}

func GetTutorProfile(c *fiber.Ctx) error {
	tutorID := c.Params("tutorId")

	var tutor models.Tutor
	if err := database.DB.Preload("User").First(&tutor, "user_id = ? AND status = ?", tutorID, "active").Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Active tutor not found"})
	}

	return c.JSON(tutor)
}

func ListActiveTutors(c *fiber.Ctx) error {
	var activeTutors []models.Tutor
	if err := database.DB.Preload("User").Where("status = ?", "active").Find(&activeTutors).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve tutors"})
	}

	return c.JSON(activeTutors)
}
