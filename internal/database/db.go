package database

import (
	"fmt"

	"kitchen-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to Postgres and migrates the schema.
func Open(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Ingredients predate the soft-delete column in some installs.
	if db.Migrator().HasTable(&models.Ingredient{}) && !db.Migrator().HasColumn(&models.Ingredient{}, "deleted") {
		logger.Info("adding ingredients.deleted column")
		if err := db.Exec("ALTER TABLE ingredients ADD COLUMN deleted BOOLEAN NOT NULL DEFAULT FALSE").Error; err != nil {
			return nil, fmt.Errorf("adding ingredients.deleted: %w", err)
		}
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	// Partial index for the listing hot path (non-deleted rows only).
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_ingredients_live_name ON ingredients(name) WHERE deleted = false").Error; err != nil {
		logger.Warn("creating ingredient listing index", zap.Error(err))
	}

	logger.Info("database connected and migrated")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.RevokedToken{},
		&models.Ingredient{},
		&models.Order{},
		&models.Recipe{},
		&models.RecipeIngredient{},
		&models.StockAdjustment{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
