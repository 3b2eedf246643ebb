package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/nekesa/tutorhub/database"
	"github.com/nekesa/tutorhub/models"
	"github.com/nekesa/tutorhub/payments"
	"github.com/nekesa/tutorhub/services"
)

type CreateLessonRequestBody struct {
	SubjectID       string `json:"subject_id" validate:"required,uuid"`
	TermID          string `json:"term_id" validate:"required,uuid"`
	StartDate       string `json:"start_date" validate:"required,datetime=2006-01-02"`
	StartMinute     int    `json:"start_minute" validate:"min=0,max=1439"`
	Frequency       string `json:"frequency" validate:"required,oneof=once weekly biweekly monthly"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,min=15,max=240"`
}

// CreateLessonRequest files the student's ask for lessons in a subject. An
// admin later assigns a tutor, which turns it into a lesson.
func CreateLessonRequest(c *fiber.Ctx) error {
	studentID := currentUserID(c)

	var req CreateLessonRequestBody
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	startDate, _ := time.Parse("2006-01-02", req.StartDate)

	var term models.Term
	if err := database.DB.First(&term, "id = ?", req.TermID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Term not found"})
	}
	if startDate.Before(term.StartDate) || startDate.After(term.EndDate) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Start date falls outside the term"})
	}

	newRequest := models.LessonRequest{
		StudentID:       studentID,
		SubjectID:       uuid.MustParse(req.SubjectID),
		TermID:          term.ID,
		StartDate:       startDate,
		StartMinute:     req.StartMinute,
		Frequency:       models.Frequency(req.Frequency),
		DurationMinutes: req.DurationMinutes,
	}

	if err := database.DB.Create(&newRequest).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create lesson request"})
	}

	return c.Status(fiber.StatusCreated).JSON(newRequest)
}

func GetMyLessonRequests(c *fiber.Ctx) error {
	studentID := currentUserID(c)

	var requests []models.LessonRequest
	database.DB.Preload("Subject").Preload("Term").
		Where("student_id = ?", studentID).
		Order("created_at desc").
		Find(&requests)

	return c.JSON(requests)
}

func GetMyStudentLessons(c *fiber.Ctx) error {
	studentID := currentUserID(c)

	if _, err := services.Lessons.SweepOccurrenceStatuses(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to refresh lesson calendar"})
	}

	var lessons []models.Lesson
	database.DB.Preload("Tutor").Preload("Subject").Preload("Term").
		Where("student_id = ?", studentID).
		Order("start_date asc").
		Find(&lessons)

	return c.JSON(lessons)
}

func GetMyStudentOccurrences(c *fiber.Ctx) error {
	studentID := currentUserID(c)
	lessonID := c.Params("lessonId")

	var lesson models.Lesson
	if err := database.DB.First(&lesson, "id = ? AND student_id = ?", lessonID, studentID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Lesson not found"})
	}

	var occurrences []models.LessonOccurrence
	database.DB.Where("lesson_id = ?", lessonID).
		Order("date asc").
		Find(&occurrences)

	return c.JSON(occurrences)
}

// SubmitStudentUpdateRequest is the student-side counterpart of the tutor's
// update request endpoint.
func SubmitStudentUpdateRequest(c *fiber.Ctx) error {
	studentID := currentUserID(c)
	lessonID := c.Params("lessonId")

	var req SubmitUpdateRequestBody
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var lesson models.Lesson
	if err := database.DB.First(&lesson, "id = ? AND student_id = ?", lessonID, studentID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Lesson not found"})
	}

	request, err := services.Lessons.SubmitUpdateRequest(lesson.ID, "student", models.UpdateOption(req.Option), req.Details)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateRequest) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "An update request for this lesson is already awaiting review"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to submit update request"})
	}

	return c.Status(fiber.StatusCreated).JSON(request)
}

// GetMyNotificationFlag reports whether a lesson of the student's was changed
// since they last checked.
func GetMyNotificationFlag(c *fiber.Ctx) error {
	var user models.User
	if err := database.DB.First(&user, "id = ?", currentUserID(c)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	return c.JSON(fiber.Map{"has_new_lesson_notification": user.HasNewLessonNotification})
}

func ClearMyNotificationFlag(c *fiber.Ctx) error {
	err := database.DB.Model(&models.User{}).
		Where("id = ?", currentUserID(c)).
		Update("has_new_lesson_notification", false).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to clear notification"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func GetMyInvoices(c *fiber.Ctx) error {
	studentID := currentUserID(c)

	var invoices []models.Invoice
	database.DB.Preload("Occurrences").
		Where("student_id = ?", studentID).
		Order("created_at desc").
		Find(&invoices)

	return c.JSON(invoices)
}

type PayInvoiceRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,min=10"`
}

// PayInvoiceWithMpesa kicks off an M-Pesa STK push for the invoice amount.
func PayInvoiceWithMpesa(c *fiber.Ctx) error {
	studentID := currentUserID(c)
	invoiceID := c.Params("invoiceId")

	var req PayInvoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var invoice models.Invoice
	if err := database.DB.First(&invoice, "id = ? AND student_id = ?", invoiceID, studentID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Invoice not found"})
	}
	if invoice.Status == models.InvoicePaid {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invoice is already paid"})
	}

	response, err := payments.InitiateSTKPush(req.PhoneNumber, invoice.Amount, invoice.Number)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to initiate M-Pesa payment"})
	}

	return c.JSON(response)
}
