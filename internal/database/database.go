package database

import (
	"fmt"
	"time"

	"github.com/truckmitra/backend/internal/config"
	"github.com/truckmitra/backend/internal/database/migrations"
	"github.com/truckmitra/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB initializes the database connection with configuration
func InitDB(dbConfig config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dbConfig.URL), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	sqlDB.SetMaxIdleConns(dbConfig.MaxIdle)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Migrate runs schema auto-migration followed by versioned migrations.
// AutoMigrate covers columns; the versioned migrations add the constraints
// gorm tags cannot express (partial unique indexes).
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// Users and onboarding
		&models.User{},
		&models.VendorProfile{},
		&models.OTPVerification{},

		// KYC and fleet
		&models.KYCDocument{},
		&models.Vehicle{},

		// Billing
		&models.Plan{},
		&models.PlanSubscription{},
		&models.Payment{},
		&models.WebhookEvent{},
	); err != nil {
		return err
	}

	return migrations.RunMigrations(db)
}
