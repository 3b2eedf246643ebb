package database

import (
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	config "github.com/nekesa/tutorhub/configs"
	"github.com/nekesa/tutorhub/models"
)

var DB *gorm.DB

func ConnectDB() {
	var err error
	dsn := config.Config("DATABASE_URL")

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt:            false,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		zap.S().Fatalf("🔥 Failed to connect to database: %v", err)
	}

	zap.S().Info("✅ Database connected successfully")
}

func Migrate() {
	err := DB.AutoMigrate(
		&models.User{},
		&models.Tutor{},
		&models.Subject{},
		&models.Term{},
		&models.TutorAvailabilitySlot{},
		&models.LessonRequest{},
		&models.Lesson{},
		&models.LessonOccurrence{},
		&models.LessonUpdateRequest{},
		&models.Invoice{},
	)
	if err != nil {
		zap.S().Fatalf("🔥 Failed to migrate database: %v", err)
	}

	// AutoMigrate cannot express a partial index; this backs the
	// one-unhandled-request-per-lesson rule under concurrent submits.
	err = DB.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uniq_lesson_open_request
		ON lesson_update_requests (lesson_id) WHERE NOT handled`).Error
	if err != nil {
		zap.S().Fatalf("🔥 Failed to create partial indexes: %v", err)
	}

	zap.S().Info("✅ Database migration successful")
}

func SeedAdmin() {
	adminEmail := config.Config("ADMIN_EMAIL")
	adminPassword := config.Config("ADMIN_PASSWORD")

	var count int64
	err := DB.Model(&models.User{}).Where("email = ?", adminEmail).Count(&count).Error
	if err != nil {
		zap.S().Fatalf("🔥 Failed to check for admin user: %v", err)
		return
	}

	if count > 0 {
		zap.S().Info("Admin user already exists.")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		zap.S().Fatalf("🔥 Failed to hash admin password: %v", err)
		return
	}

	adminUser := models.User{
		FullName: config.Config("ADMIN_FULL_NAME"),
		Email:    adminEmail,
		Password: string(hashedPassword),
		Role:     "admin",
		IsActive: true,
	}

	if err := DB.Create(&adminUser).Error; err != nil {
		zap.S().Fatalf("🔥 Failed to seed admin user: %v", err)
		return
	}

	zap.S().Info("✅ Admin user seeded successfully")
}
