package db

import (
	"github.com/antonybarran/Sam-Search-WA-3/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Opportunity{},
		&models.SyncState{},
		&models.RawSnapshot{},
	)
}
