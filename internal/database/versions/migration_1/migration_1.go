package migration_1

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TrainingRun struct {
	ChunksProcessed int `gorm:"default:0"`
}

type RunError struct {
	RunId     uuid.UUID `gorm:"type:uuid;primaryKey"`
	ErrorId   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Error     string
	Timestamp time.Time
}

func Migration(db *gorm.DB) error {
	if err := db.Migrator().AddColumn(&TrainingRun{}, "chunks_processed"); err != nil {
		return fmt.Errorf("error adding ChunksProcessed column: %w", err)
	}

	if err := db.Model(&TrainingRun{}).
		Where("chunks_processed IS NULL").
		Update("chunks_processed", 0).Error; err != nil {
		return fmt.Errorf("error setting default value for ChunksProcessed: %w", err)
	}

	if err := db.AutoMigrate(&RunError{}); err != nil {
		return fmt.Errorf("error creating run errors table: %w", err)
	}

	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropTable(&RunError{}); err != nil {
		return fmt.Errorf("error dropping run errors table: %w", err)
	}

	if err := db.Migrator().DropColumn(&TrainingRun{}, "chunks_processed"); err != nil {
		return fmt.Errorf("error dropping ChunksProcessed column: %w", err)
	}

	return nil
}
