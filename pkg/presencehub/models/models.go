package models

import "gorm.io/gorm"

// AllModels returns all models for migration.
// Note: Connection must be migrated before the resource tables that reference it.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&APIKey{},
		&Connection{},
		&Location{},
		&Review{},
		&Question{},
		&Post{},
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
