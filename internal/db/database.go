package db

import (
	"fmt"
	"time"

	"dex-backend/internal/config"
	"dex-backend/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Open connects to postgres with the service's gorm settings
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		PrepareStmt:                              true,
		TranslateError:                           true,
		CreateBatchSize:                          1000,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return gdb, nil
}

// Migrate creates the tables and then the constraints AutoMigrate leaves out
func Migrate(gdb *gorm.DB) error {
	logrus.Info("Starting database schema migration with GORM AutoMigrate")
	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Bot{},
		&models.Maker{},
		&models.Taker{},
		&models.StakingEntry{},
		&models.StakingFeesEntry{},
		&models.StakingFeesWithdrawal{},
	); err != nil {
		return fmt.Errorf("AutoMigrate failed: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := RunDataMigrations(sqlDB); err != nil {
		return fmt.Errorf("constraint migrations failed: %w", err)
	}

	logrus.Info("Database schema migrated successfully")
	return nil
}

// InitDB opens the configured database into the package-level DB and migrates it
func InitDB() error {
	if config.AppConfig == nil {
		return fmt.Errorf("config not loaded")
	}

	gdb, err := Open(config.AppConfig.Database.DSN)
	if err != nil {
		return err
	}
	logrus.Info("Database connected successfully")

	if err := Migrate(gdb); err != nil {
		return err
	}
	DB = gdb
	return nil
}
