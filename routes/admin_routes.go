package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nekesa/tutorhub/handlers"
	"github.com/nekesa/tutorhub/middleware"
)

func AdminRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(), middleware.AdminRequired())

	admin.Get("/applications/pending", handlers.ListPendingApplications)
	admin.Put("/applications/:tutorId", handlers.ManageApplication)

	subjects := admin.Group("/subjects")
	subjects.Post("", handlers.CreateSubject)
	subjects.Get("", handlers.ListSubjects)
	subjects.Put("/:subjectId", handlers.UpdateSubject)
	subjects.Delete("/:subjectId", handlers.DeleteSubject)

	terms := admin.Group("/terms")
	terms.Post("", handlers.CreateTerm)
	terms.Get("", handlers.ListTerms)

	lessonRequests := admin.Group("/lesson-requests")
	lessonRequests.Get("", handlers.ListLessonRequests)
	lessonRequests.Post("/:requestId/assign", handlers.AssignTutorToRequest)
	lessonRequests.Post("/:requestId/reject", handlers.RejectLessonRequest)

	updateRequests := admin.Group("/update-requests")
	updateRequests.Get("", handlers.ListUpdateRequests)
	updateRequests.Post("/:requestId/resolve", handlers.ResolveUpdateRequest)

	admin.Get("/lessons", handlers.ListAllLessons)
	admin.Get("/availability-board", handlers.GetAvailabilityBoard)

	invoices := admin.Group("/invoices")
	invoices.Get("", handlers.ListInvoices)
	invoices.Post("/students/:studentId", handlers.GenerateStudentInvoice)
	invoices.Post("/:invoiceId/mark-paid", handlers.MarkInvoicePaid)
	invoices.Post("/:invoiceId/pdf", handlers.GenerateInvoicePDF)

	users := admin.Group("/users")
	users.Get("", handlers.ListUsers)
	users.Put("/:userId/status", handlers.SetUserActive)
}
