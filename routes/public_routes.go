package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nekesa/tutorhub/handlers"
)

func PublicRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Get("/subjects", handlers.ListSubjects)
	api.Get("/terms", handlers.ListTerms)
	api.Get("/availability-board", handlers.GetAvailabilityBoard)
}
