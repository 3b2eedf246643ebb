package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nekesa/tutorhub/database"
	"github.com/nekesa/tutorhub/models"
	"github.com/nekesa/tutorhub/notifications"
	"github.com/nekesa/tutorhub/services"
	"github.com/nekesa/tutorhub/websocket"
)

func ListPendingApplications(c *fiber.Ctx) error {
	var pendingTutors []models.Tutor
	if err := database.DB.Preload("User").Where("status = ?", "pending").Find(&pendingTutors).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	return c.JSON(pendingTutors)
}

func ManageApplication(c *fiber.Ctx) error {
	type MgtRequest struct {
		Status string `json:"status" validate:"required,oneof=active rejected"`
	}

	var req MgtRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	tutorUserID := c.Params("tutorId")

	var tutorApp models.Tutor
	if err := database.DB.Where("user_id = ?", tutorUserID).First(&tutorApp).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Application not found"})
	}

	var user models.User
	if err := database.DB.Where("id = ?", tutorUserID).First(&user).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Associated user not found"})
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		tutorApp.Status = req.Status
		if err := tx.Save(&tutorApp).Error; err != nil {
			return err
		}
		if req.Status == "active" {
			user.Role = "tutor"
			if err := tx.Save(&user).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update application status"})
	}

	switch req.Status {
	case "active":
		go notifications.SendEmail(
			user.FullName,
			user.Email,
			"Your Tutor Application has been Approved!",
			"<h1>Congratulations!</h1><p>Your application to become a tutor has been approved. You can now publish your availability and start teaching.</p>",
		)
	case "rejected":
		go notifications.SendEmail(
			user.FullName,
			user.Email,
			"Update on Your Tutor Application",
			"<h1>Application Update</h1><p>We regret to inform you that after careful review, your tutor application was not approved at this time.</p>",
		)
	}

	return c.JSON(fiber.Map{"message": "Application status updated successfully"})
}

type SubjectRequest struct {
	Name        string  `json:"name" validate:"required,min=2"`
	Description *string `json:"description"`
}

func CreateSubject(c *fiber.Ctx) error {
	var req SubjectRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	subject := models.Subject{
		Name:        req.Name,
		Description: req.Description,
	}
	if err := database.DB.Create(&subject).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create subject"})
	}

	return c.Status(fiber.StatusCreated).JSON(subject)
}

func ListSubjects(c *fiber.Ctx) error {
	var subjects []models.Subject
	database.DB.Order("name asc").Find(&subjects)
	return c.JSON(subjects)
}

func UpdateSubject(c *fiber.Ctx) error {
	subjectID := c.Params("subjectId")
	var subject models.Subject
	if err := database.DB.Where("id = ?", subjectID).First(&subject).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Subject not found"})
	}

	var req SubjectRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	subject.Name = req.Name
	subject.Description = req.Description
	database.DB.Save(&subject)

	return c.JSON(subject)
}

func DeleteSubject(c *fiber.Ctx) error {
	subjectID := c.Params("subjectId")
	result := database.DB.Delete(&models.Subject{}, "id = ?", subjectID)

	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete subject"})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Subject not found"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

type TermRequest struct {
	Name      string `json:"name" validate:"required,min=2"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

func CreateTerm(c *fiber.Ctx) error {
	var req TermRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	startDate, _ := time.Parse("2006-01-02", req.StartDate)
	endDate, _ := time.Parse("2006-01-02", req.EndDate)
	if !startDate.Before(endDate) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Term start must be before its end"})
	}

	term := models.Term{
		Name:      req.Name,
		StartDate: startDate,
		EndDate:   endDate,
	}
	if err := database.DB.Create(&term).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create term"})
	}

	return c.Status(fiber.StatusCreated).JSON(term)
}

func ListTerms(c *fiber.Ctx) error {
	var terms []models.Term
	database.DB.Order("start_date asc").Find(&terms)
	return c.JSON(terms)
}

func ListLessonRequests(c *fiber.Ctx) error {
	var requests []models.LessonRequest
	query := database.DB.Preload("Student").Preload("Subject").Preload("Term")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	query.Order("created_at asc").Find(&requests)

	return c.JSON(requests)
}

type AssignTutorRequest struct {
	TutorID        string  `json:"tutor_id" validate:"required,uuid"`
	PricePerLesson float64 `json:"price_per_lesson" validate:"required,gt=0"`
}

// AssignTutorToRequest turns a pending lesson request into a live lesson. The
// lesson books the tutor's availability window and expands its occurrences in
// one transaction.
func AssignTutorToRequest(c *fiber.Ctx) error {
	requestID := c.Params("requestId")

	var req AssignTutorRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var lessonRequest models.LessonRequest
	if err := database.DB.Preload("Student").First(&lessonRequest, "id = ?", requestID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Lesson request not found"})
	}
	if lessonRequest.Status != models.OccurrencePending {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Lesson request has already been handled"})
	}

	tutorID := uuid.MustParse(req.TutorID)
	result, err := services.Lessons.CreateLesson(services.CreateLessonInput{
		TutorID:         tutorID,
		StudentID:       lessonRequest.StudentID,
		SubjectID:       lessonRequest.SubjectID,
		TermID:          lessonRequest.TermID,
		Frequency:       lessonRequest.Frequency,
		DurationMinutes: lessonRequest.DurationMinutes,
		StartDate:       lessonRequest.StartDate,
		StartMinute:     lessonRequest.StartMinute,
		PricePerLesson:  req.PricePerLesson,
	})
	if err != nil {
		return lessonErrorResponse(c, err)
	}

	lessonRequest.Status = models.OccurrenceScheduled
	database.DB.Save(&lessonRequest)

	go notifications.SendEmail(
		lessonRequest.Student.FullName,
		lessonRequest.Student.Email,
		"A Tutor Has Been Assigned",
		fmt.Sprintf("<h1>Good news!</h1><p>A tutor has been assigned to your lesson request. Your lessons start on %s.</p>", result.Lesson.StartDate.Format("2006-01-02")),
	)
	websocket.NotifyLessonChanged(lessonRequest.StudentID, result.Lesson.ID, "A tutor has been assigned to your lesson request.")

	return c.Status(fiber.StatusCreated).JSON(result)
}

func RejectLessonRequest(c *fiber.Ctx) error {
	requestID := c.Params("requestId")

	var lessonRequest models.LessonRequest
	if err := database.DB.First(&lessonRequest, "id = ?", requestID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Lesson request not found"})
	}
	if lessonRequest.Status != models.OccurrencePending {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Lesson request has already been handled"})
	}

	lessonRequest.Status = models.OccurrenceRejected
	database.DB.Save(&lessonRequest)

	return c.JSON(lessonRequest)
}

func ListUpdateRequests(c *fiber.Ctx) error {
	var requests []models.LessonUpdateRequest
	query := database.DB.Preload("Lesson").Preload("Lesson.Student").Preload("Lesson.Tutor").Preload("Lesson.Subject")
	if c.Query("include_handled") != "true" {
		query = query.Where("handled = ?", false)
	}
	query.Order("created_at asc").Find(&requests)

	return c.JSON(requests)
}

type ResolveUpdateRequestBody struct {
	NewTutorID     *string `json:"new_tutor_id" validate:"omitempty,uuid"`
	NewStartDate   *string `json:"new_start_date" validate:"omitempty,datetime=2006-01-02"`
	NewStartMinute *int    `json:"new_start_minute" validate:"omitempty,min=0,max=1439"`
	NewFrequency   *string `json:"new_frequency" validate:"omitempty,oneof=once weekly biweekly monthly"`
	NewDuration    *int    `json:"new_duration_minutes" validate:"omitempty,min=15,max=240"`
}

// ResolveUpdateRequest applies an admin's decision on an open update request.
// Cancellation requests terminate the lesson; everything else reschedules it,
// booking the replacement window before releasing the old one.
func ResolveUpdateRequest(c *fiber.Ctx) error {
	requestID := c.Params("requestId")

	var updateRequest models.LessonUpdateRequest
	if err := database.DB.First(&updateRequest, "id = ?", requestID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Update request not found"})
	}
	if updateRequest.Handled {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Update request has already been handled"})
	}

	if updateRequest.Option == models.UpdateCancelLessons {
		result, err := services.Lessons.ResolveCancelLessons(updateRequest.LessonID)
		if err != nil {
			return lessonErrorResponse(c, err)
		}
		websocket.NotifyLessonChanged(result.Lesson.StudentID, result.Lesson.ID, "Your remaining lessons have been cancelled.")
		return c.JSON(result)
	}

	var req ResolveUpdateRequestBody
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var input services.RescheduleInput
	if req.NewTutorID != nil {
		id := uuid.MustParse(*req.NewTutorID)
		input.NewTutorID = &id
	}
	if req.NewStartDate != nil {
		date, _ := time.Parse("2006-01-02", *req.NewStartDate)
		input.NewStartDate = &date
	}
	input.NewStartMinute = req.NewStartMinute
	if req.NewFrequency != nil {
		freq := models.Frequency(*req.NewFrequency)
		input.NewFrequency = &freq
	}
	input.NewDuration = req.NewDuration

	lesson, err := services.Lessons.ResolveChangeTutorOrDayTime(updateRequest.LessonID, input)
	if err != nil {
		if errors.Is(err, services.ErrNothingToReschedule) {
			return c.JSON(fiber.Map{"message": "No future lessons remained to reschedule; the request has been closed."})
		}
		return lessonErrorResponse(c, err)
	}

	websocket.NotifyLessonChanged(lesson.StudentID, lesson.ID, "Your lesson schedule has been updated.")

	return c.JSON(lesson)
}

// lessonErrorResponse maps coordinator errors onto HTTP statuses.
func lessonErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Record not found"})
	case errors.Is(err, services.ErrNoAvailabilityFound):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "The tutor has no availability covering that window"})
	case errors.Is(err, services.ErrLessonExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "An active lesson already exists for this tutor, student and subject"})
	case errors.Is(err, services.ErrInvalidStartDate),
		errors.Is(err, services.ErrInvalidDuration),
		errors.Is(err, services.ErrInvalidPrice),
		errors.Is(err, services.ErrInvalidFrequency):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process lesson operation"})
	}
}

func ListAllLessons(c *fiber.Ctx) error {
	var lessons []models.Lesson
	query := database.DB.Preload("Tutor").Preload("Student").Preload("Subject").Preload("Term")
	if tutorID := c.Query("tutor_id"); tutorID != "" {
		query = query.Where("tutor_id = ?", tutorID)
	}
	if studentID := c.Query("student_id"); studentID != "" {
		query = query.Where("student_id = ?", studentID)
	}
	query.Order("start_date asc").Find(&lessons)

	return c.JSON(lessons)
}

// GetAvailabilityBoard returns every open window grouped by weekday and time
// range, the admin's view when picking a tutor for a request.
func GetAvailabilityBoard(c *fiber.Ctx) error {
	board, err := services.Lessons.AllAvailability()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load availability"})
	}
	return c.JSON(board)
}

func GenerateStudentInvoice(c *fiber.Ctx) error {
	studentID, err := uuid.Parse(c.Params("studentId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid student id"})
	}

	invoice, err := services.Invoices.GenerateInvoice(studentID)
	if err != nil {
		if errors.Is(err, services.ErrNothingToInvoice) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No uninvoiced completed lessons for this student"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate invoice"})
	}

	return c.Status(fiber.StatusCreated).JSON(invoice)
}

func ListInvoices(c *fiber.Ctx) error {
	var invoices []models.Invoice
	query := database.DB.Preload("Student")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	query.Order("created_at desc").Find(&invoices)

	return c.JSON(invoices)
}

func MarkInvoicePaid(c *fiber.Ctx) error {
	invoiceID, err := uuid.Parse(c.Params("invoiceId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid invoice id"})
	}

	invoice, err := services.Invoices.MarkPaid(invoiceID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Invoice not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to mark invoice paid"})
	}

	return c.JSON(invoice)
}

func GenerateInvoicePDF(c *fiber.Ctx) error {
	invoiceID, err := uuid.Parse(c.Params("invoiceId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid invoice id"})
	}

	pdfURL, err := services.Invoices.RenderAndUploadPDF(invoiceID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Invoice not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate invoice PDF"})
	}

	return c.JSON(fiber.Map{"pdf_url": pdfURL})
}

func ListUsers(c *fiber.Ctx) error {
	var users []models.User
	query := database.DB
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	query.Order("created_at desc").Find(&users)

	return c.JSON(users)
}

func SetUserActive(c *fiber.Ctx) error {
	type ActiveRequest struct {
		IsActive *bool `json:"is_active" validate:"required"`
	}
	var req ActiveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	result := database.DB.Model(&models.User{}).
		Where("id = ?", c.Params("userId")).
		Update("is_active", *req.IsActive)
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update user"})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	return c.JSON(fiber.Map{"message": "User updated successfully"})
}
