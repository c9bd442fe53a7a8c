package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/ktlab/jirabridge/internal/models"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Project{},
		&models.Task{},
		&models.Comment{},
		&models.Worklog{},
		&models.WorklogIntegration{},
		&models.AttachedObject{},
		&models.FileObject{},
		&models.Storage{},
		&models.AttachmentIntegration{},
		&models.ChecklistItem{},
		&models.ImportSession{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
