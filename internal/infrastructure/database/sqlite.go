package database

import (
	"fmt"
	"log"

	"paycore/internal/config"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenSQLite opens a migrated SQLite database, ":memory:" included.
// SQLite has a single writer, so the pool is pinned to one connection.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return db, nil
}

// InitStorage opens the configured backend, or exits.
func InitStorage(cfg *config.Config) *gorm.DB {
	if cfg.Storage.Driver != "sqlite" {
		return InitMySQL(&cfg.MySQL)
	}

	db, err := OpenSQLite(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("sqlite opened: %s", cfg.Storage.SQLitePath)
	return db
}
