package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
)

const (
	migrationBackfillAssignmentDefaults = "2024-06-01_backfill_assignment_defaults"
	migrationBackfillNoteLists          = "2024-06-01_backfill_note_lists"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillAssignmentDefaults, apply: backfillAssignmentDefaults},
		{name: migrationBackfillNoteLists, apply: backfillNoteLists},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillAssignmentDefaults gives rows written before the status and
// priority columns were constrained their default values, and marks done
// assignments completed.
func backfillAssignmentDefaults(db *gorm.DB) error {
	if err := db.Model(&entities.Assignment{}).
		Where("status_name = '' OR status_name IS NULL").
		Update("status_name", string(entities.StatusNotStarted)).Error; err != nil {
		return err
	}
	if err := db.Model(&entities.Assignment{}).
		Where("priority = '' OR priority IS NULL").
		Update("priority", string(entities.PriorityMedium)).Error; err != nil {
		return err
	}
	return db.Model(&entities.Assignment{}).
		Where("status_name = ?", string(entities.StatusDone)).
		Update("completed", true).Error
}

// backfillNoteLists replaces empty keyword and video columns with empty JSON
// lists.
func backfillNoteLists(db *gorm.DB) error {
	if err := db.Model(&entities.Note{}).
		Where("keywords IS NULL OR keywords = ''").
		Update("keywords", "[]").Error; err != nil {
		return err
	}
	return db.Model(&entities.Note{}).
		Where("videos IS NULL OR videos = ''").
		Update("videos", "[]").Error
}
