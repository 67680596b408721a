package database

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// NewSQLite opens a pure-Go sqlite database. ":memory:" keeps a single
// connection so every query sees the same in-memory schema.
func NewSQLite(path string) (*gorm.DB, error) {
	if path == "" {
		path = "cryptoguard.db"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         newLogger(),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, err
	}

	return db, nil
}
