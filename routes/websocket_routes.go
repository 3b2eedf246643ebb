package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nekesa/tutorhub/middleware"
	ws "github.com/nekesa/tutorhub/websocket"
)

func WebsocketRoutes(app *fiber.App) {
	app.Use("/ws", middleware.Protected(), ws.UpgradeRequired)
	app.Get("/ws/notifications", ws.Serve())
}
