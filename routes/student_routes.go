package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nekesa/tutorhub/handlers"
	"github.com/nekesa/tutorhub/middleware"
)

func StudentRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	student := api.Group("/student", middleware.Protected())

	requests := student.Group("/lesson-requests")
	requests.Post("", handlers.CreateLessonRequest)
	requests.Get("", handlers.GetMyLessonRequests)

	lessons := student.Group("/lessons")
	lessons.Get("", handlers.GetMyStudentLessons)
	lessons.Get("/:lessonId/occurrences", handlers.GetMyStudentOccurrences)
	lessons.Post("/:lessonId/update-requests", handlers.SubmitStudentUpdateRequest)

	notificationsGroup := student.Group("/notifications")
	notificationsGroup.Get("/flag", handlers.GetMyNotificationFlag)
	notificationsGroup.Delete("/flag", handlers.ClearMyNotificationFlag)

	invoices := student.Group("/invoices")
	invoices.Get("", handlers.GetMyInvoices)
	invoices.Post("/:invoiceId/pay/mpesa", handlers.PayInvoiceWithMpesa)
}
