// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/iyunix/go-livechat/internal/database"
)

// NewTestDB returns a migrated, private in-memory SQLite database. A single
// connection keeps the shared-cache database alive and avoids table locks
// between goroutines.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.Open(database.Options{
		Driver:       database.DriverSQLite,
		DSN:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		LogLevel:     gormlogger.Silent,
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
