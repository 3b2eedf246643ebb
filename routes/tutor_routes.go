package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nekesa/tutorhub/handlers"
	"github.com/nekesa/tutorhub/middleware"
)

func TutorRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Get("/tutors", handlers.ListActiveTutors)
	api.Get("/tutors/:tutorId", handlers.GetTutorProfile)

	tutor := api.Group("/tutor", middleware.Protected())
	tutor.Post("/apply", handlers.ApplyToBeATutor)

	availability := tutor.Group("/availability", middleware.TutorRequired())
	availability.Post("", handlers.PublishAvailability)
	availability.Get("/me", handlers.GetMyAvailability)
	availability.Delete("/:slotId", handlers.DeleteAvailabilitySlot)

	lessons := tutor.Group("/lessons", middleware.TutorRequired())
	lessons.Get("", handlers.GetMyLessons)
	lessons.Get("/:lessonId/occurrences", handlers.GetLessonOccurrences)
	lessons.Post("/:lessonId/update-requests", handlers.SubmitLessonUpdateRequest)
	tutor.Get("/update-requests", middleware.TutorRequired(), handlers.GetMyUpdateRequests)

	occurrences := tutor.Group("/occurrences", middleware.TutorRequired())
	occurrences.Post("/:occurrenceId/feedback", handlers.SubmitOccurrenceFeedback)
}
