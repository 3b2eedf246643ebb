package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nekesa/tutorhub/handlers"
)

func PaymentRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	// Called by the payment gateway, not by users.
	api.Post("/payments/webhook", handlers.MpesaWebhook)
}
