// Package db wires the relational persistence layer (component N in
// spec.md's dependency table) used by the compare cache store, the credit
// ledger, and the auth gate. Grounded on the example pack's only complete
// GORM-backed store (a strategy store wrapping *gorm.DB with TableName()
// methods and indexed columns); generalized here to a SQLite-compatible
// schema per spec.md §6.4.
package db

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open opens (creating if necessary) the SQLite database at path and
// returns a configured *gorm.DB. verbose raises GORM's own query logging
// from Warn to Info.
func Open(path string, verbose bool) (*gorm.DB, error) {
	logLevel := gormlogger.Warn
	if verbose {
		logLevel = gormlogger.Info
	}

	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", path, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	// SQLite allows only one writer at a time; a single pooled connection
	// avoids SQLITE_BUSY under concurrent compare requests instead of
	// fighting it with retries.
	sqlDB.SetMaxOpenConns(1)

	slog.Info("database opened", "path", path)
	return gdb, nil
}

// Migrate runs AutoMigrate for every model the service persists. Models are
// passed in by the caller (main) so this package has no import-cycle on
// the component packages that own them.
func Migrate(gdb *gorm.DB, models ...interface{}) error {
	if err := gdb.AutoMigrate(models...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}
