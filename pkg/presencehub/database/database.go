package database

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect opens the SQLite database and keeps the shared handle. File-backed
// databases get a busy timeout and foreign keys enabled through DSN pragmas;
// the in-memory DSN used by tests passes through untouched.
func Connect(path string) error {
	dsn := path
	if !strings.Contains(path, ":memory:") && !strings.Contains(path, "?") {
		dsn = path + "?_busy_timeout=5000&_foreign_keys=on"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("opening database %s: %w", path, err)
	}

	// SQLite takes a single writer; a small pool keeps concurrent syncs from
	// piling up on the write lock.
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	DB = db
	return nil
}

// GetDB returns the shared database handle.
func GetDB() *gorm.DB {
	return DB
}
