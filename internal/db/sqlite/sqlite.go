// Package sqlite opens the embedded SQLite store used for local development and repository tests.
// It runs on gorm with the pure-Go glebarez driver, so no cgo toolchain is needed.
package sqlite

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"server-actions/backend/internal/db"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Memory is the path for a private in-memory database.
const Memory = ":memory:"

// Open opens (creating if needed) the SQLite database at path with foreign keys enforced.
// An empty path or Memory opens a private in-memory database; it is pinned to one connection
// so every query sees the same data.
func Open(path string) (*gorm.DB, error) {
	path = strings.TrimSpace(path)
	memory := path == "" || path == Memory
	dsn := "file:" + path
	if memory {
		dsn = "file::memory:"
	}
	dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if memory {
		sqlDB.SetMaxOpenConns(1)
	}
	return gdb, nil
}

// Close closes the underlying connection pool.
func Close(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Classify maps SQLite constraint violations to db.ErrDuplicate or db.ErrMissingReference.
// Any other error is returned unchanged.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey), strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", db.ErrDuplicate, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated), strings.Contains(err.Error(), "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %v", db.ErrMissingReference, err)
	}
	return err
}
