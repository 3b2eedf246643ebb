package main

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	config "github.com/nekesa/tutorhub/configs"
	"github.com/nekesa/tutorhub/database"
	"github.com/nekesa/tutorhub/jobs"
	"github.com/nekesa/tutorhub/logging"
	"github.com/nekesa/tutorhub/notifications"
	"github.com/nekesa/tutorhub/routes"
	"github.com/nekesa/tutorhub/services"
)

func main() {
	log := logging.Init(config.ConfigDefault("APP_ENV", "development"))
	defer log.Sync()

	database.ConnectDB()
	database.Migrate()
	database.SeedAdmin()
	services.Init(database.DB)
	notifications.InitEmailService()

	c := cron.New()
	c.AddFunc("*/10 * * * *", jobs.SweepOccurrenceStatuses)
	c.AddFunc("0 * * * *", jobs.MarkOverdueInvoices)
	c.AddFunc("0 * * * *", jobs.SendLessonReminders)
	go c.Start()
	zap.S().Info("✅ Cron jobs scheduled successfully.")

	app := fiber.New(fiber.Config{
		Prefork:           false,
		AppName:           "TutorHub",
		CaseSensitive:     true,
		StrictRouting:     true,
		EnablePrintRoutes: true,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			zap.S().Errorf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Africa/Nairobi",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to TutorHub API",
		})
	})

	routes.PublicRoutes(app)
	routes.AuthRoutes(app)
	routes.ProfileRoutes(app)
	routes.TutorRoutes(app)
	routes.StudentRoutes(app)
	routes.AdminRoutes(app)
	routes.PaymentRoutes(app)
	routes.UploadRoutes(app)
	routes.WebsocketRoutes(app)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	port := config.ConfigDefault("PORT", "8080")
	zap.S().Infof("✅ Server is running on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		zap.S().Fatalf("🔥 Server failed to start: %v", err)
	}
}
