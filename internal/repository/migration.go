package repository

import (
	"fmt"

	"classpoll/internal/domain/poll"

	"gorm.io/gorm"
)

// InitSchema handles the database schema migration.
// Runs gorm auto-migration, then adds the indexes gorm tags cannot express.
func InitSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&poll.Poll{},
		&poll.PollOption{},
		&poll.Response{},
	); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	// At most one active poll. Partial indexes are supported by both
	// postgres and sqlite.
	singleActive := `CREATE UNIQUE INDEX IF NOT EXISTS idx_polls_single_active
		ON polls (status) WHERE status = 'active'`
	if err := db.Exec(singleActive).Error; err != nil {
		return fmt.Errorf("failed to create index idx_polls_single_active: %w", err)
	}

	return nil
}

// DropSchema removes every table owned by the service.
func DropSchema(db *gorm.DB) error {
	return db.Migrator().DropTable(&poll.Response{}, &poll.PollOption{}, &poll.Poll{})
}
